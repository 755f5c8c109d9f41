package xcall

import (
	"errors"
	"fmt"
)

// 参数校验错误
var (
	// ErrMissingCall 表示 Call 未提供任何执行闭包。
	ErrMissingCall = errors.New("xcall: call must provide Sync or Async")

	// ErrMissingSyncCall 表示阻塞模式需要 Call.Sync。
	ErrMissingSyncCall = errors.New("xcall: call has no Sync implementation")

	// ErrNilSession 表示会话控制器为 nil。
	// 执行器的 401/403 分支依赖会话控制器，不提供默认实现。
	ErrNilSession = errors.New("xcall: session cannot be nil")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xcall: context cannot be nil")
)

// 终态错误哨兵。均可配合 errors.Is 使用。
var (
	// ErrNoConnection 表示连接不可用，调用未被发起。
	// 恢复监听已登记（Call.OnConnectionLost），连接恢复后由调用方续作。
	ErrNoConnection = errors.New("xcall: internet connection not available")

	// ErrNetwork 表示通用网络失败（未分类状态码或重试预算耗尽）。
	ErrNetwork = errors.New("xcall: network call failed")

	// ErrNullResponse 表示传输失败且没有任何 HTTP 响应
	// （请求未到达服务端）。属于 ErrNetwork 的子类。
	ErrNullResponse = errors.New("xcall: network call failed with null response")

	// ErrSessionInvalid 表示会话失效（401）。
	ErrSessionInvalid = errors.New("xcall: session invalid")

	// ErrSuspended 表示账号已被远端挂起（403）。
	ErrSuspended = errors.New("xcall: user suspended")
)

// NetworkError 通用网络失败，包装原始传输错误。
// StatusCode 为 0 表示传输层没有返回任何 HTTP 响应。
type NetworkError struct {
	Message    string
	StatusCode int
	Cause      error
}

// Error 实现 error 接口。
func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("xcall: %s (status=%d): %v", e.Message, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("xcall: %s: %v", e.Message, e.Cause)
}

// Unwrap 返回原始传输错误。
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 匹配。
// 所有 NetworkError 都匹配 ErrNetwork；无响应的额外匹配 ErrNullResponse。
func (e *NetworkError) Is(target error) bool {
	if target == ErrNetwork {
		return true
	}
	return e.StatusCode == 0 && target == ErrNullResponse
}

// SessionError 会话失效（401）分支的错误。
//
// 同步模式下收到它意味着重新注册已被带外触发，但原调用不会自动重放——
// 这是对上游行为不对称性的刻意保留；异步模式在重新注册成功后会整体
// 重放，调用方不会看到此错误。
type SessionError struct {
	Cause error
}

// Error 实现 error 接口。
func (e *SessionError) Error() string {
	return fmt.Sprintf("xcall: session invalid, re-registration triggered: %v", e.Cause)
}

// Unwrap 返回原始传输错误。
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 匹配 ErrSessionInvalid。
func (e *SessionError) Is(target error) bool {
	return target == ErrSessionInvalid
}

// SuspendedError 账号挂起（403）分支的错误。
// 收到它时进程级挂起标记已被置位。
type SuspendedError struct {
	Cause error
}

// Error 实现 error 接口。
func (e *SuspendedError) Error() string {
	return fmt.Sprintf("xcall: user suspended: %v", e.Cause)
}

// Unwrap 返回原始传输错误。
func (e *SuspendedError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 匹配 ErrSuspended。
func (e *SuspendedError) Is(target error) bool {
	return target == ErrSuspended
}

// statusCode 从错误链中提取 HTTP 状态码。
// 返回 false 表示传输层没有携带任何 HTTP 响应。
func statusCode(err error) (int, bool) {
	var sc StatusCarrier
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode(), true
	}
	return 0, false
}

// responseBody 从错误链中提取响应体（可能为 nil）。
func responseBody(err error) []byte {
	var bc BodyCarrier
	if errors.As(err, &bc) {
		return bc.ResponseBody()
	}
	return nil
}
