package xcall

import "context"

// Call 是一个逻辑调用的值级闭包组。
// Sync 与 Async 至少提供其一；Async 缺省时由 Sync 派生
// （在独立 goroutine 中执行并转发结果）。
type Call[T any] struct {
	// Sync 同步执行具体端点调用。
	// 失败时返回的错误应携带 HTTP 状态（实现 StatusCarrier），
	// 否则按"无响应"处理（不重试、不恢复）。
	Sync func(ctx context.Context, apiKey string) (T, error)

	// Async 异步执行具体端点调用，结果经由 TransportListener 交付。
	Async func(ctx context.Context, apiKey string, listener TransportListener[T])

	// OnConnectionLost 在调用因无连接被拒绝时触发（每次门控失败恰好一次），
	// 供调用方向连接观察器登记恢复续作。可以为 nil。
	OnConnectionLost func()
}

// TransportListener 是传输层异步结果回调。
// 由 Call.Async 的实现方调用，Success 与 Failure 恰好触发其一。
type TransportListener[T any] interface {
	// Success 交付成功结果。
	Success(result T)
	// Failure 交付传输失败。错误应携带 HTTP 状态（实现 StatusCarrier）。
	Failure(err error)
}

// ResultListener 是逻辑调用的终态回调。
// 每个逻辑调用恰好触发以下三者之一，且只触发一次。
type ResultListener[T any] interface {
	// Success 调用成功。
	Success(result T)
	// Error 调用失败（含连接不可用、重试耗尽、重新注册失败等）。
	Error(err error)
	// UserSuspended 账号被远端挂起（403），与 Error 互斥的独立终态。
	UserSuspended()
}

// ListenerFuncs 以函数字段适配 ResultListener，未设置的字段静默忽略。
type ListenerFuncs[T any] struct {
	OnSuccess       func(result T)
	OnError         func(err error)
	OnUserSuspended func()
}

// 确保 ListenerFuncs 实现 ResultListener 接口
var _ ResultListener[struct{}] = ListenerFuncs[struct{}]{}

// Success 实现 ResultListener。
func (l ListenerFuncs[T]) Success(result T) {
	if l.OnSuccess != nil {
		l.OnSuccess(result)
	}
}

// Error 实现 ResultListener。
func (l ListenerFuncs[T]) Error(err error) {
	if l.OnError != nil {
		l.OnError(err)
	}
}

// UserSuspended 实现 ResultListener。
func (l ListenerFuncs[T]) UserSuspended() {
	if l.OnUserSuspended != nil {
		l.OnUserSuspended()
	}
}

// Session 定义执行器消费的会话控制接口。
// 由 xsession.Controller 等实现；挂起标记是进程级的横切状态。
type Session interface {
	// ReRegisterAsync 用既有用户信息异步重新注册会话。
	// done 在重新注册终态时恰好回调一次（nil 表示成功）；
	// done 为 nil 表示发起方不关心结果（fire-and-forget）。
	ReRegisterAsync(ctx context.Context, done func(err error))

	// SetSuspended 设置账号挂起标记。
	SetSuspended(suspended bool)
}

// Connectivity 定义执行器消费的连接观察接口。
// 由 xconn.Monitor / xconn.AlwaysAvailable 等实现。
type Connectivity interface {
	// Available 返回当前是否有可用连接。
	Available() bool
	// NotifyRestored 注册一次性的连接恢复回调。
	NotifyRestored(fn func())
}

// StatusCarrier 由携带 HTTP 状态码的传输错误实现。
// 未实现此接口的传输错误按"无响应"分类（不重试、直接终态）。
type StatusCarrier interface {
	HTTPStatusCode() int
}

// BodyCarrier 由携带响应体的传输错误实现。
// 仅用于 400 Bad Request 的诊断日志，不参与控制流。
type BodyCarrier interface {
	ResponseBody() []byte
}
