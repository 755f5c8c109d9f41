package xcall

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xcall/pkg/observability/xmetrics"
	"github.com/omeyang/xcall/pkg/resilience/xretry"
)

// MetricsComponent 观测维度中的组件名。
const MetricsComponent = "xcall"

// 观测操作名。
const (
	metricsOpAttempt = "attempt"
	metricsOpPerform = "perform"
)

// Executor 是带认证恢复能力的请求执行器。
// 必须通过 New 创建。一个实例对应一个逻辑调用：
// 重试预算跨实例内的所有尝试共享（含异步 401 重放链路）。
type Executor[T any] struct {
	call     Call[T]
	policy   xretry.Policy
	session  Session
	conn     Connectivity
	breaker  *gobreaker.TwoStepCircuitBreaker[any]
	logger   *slog.Logger
	observer xmetrics.Observer
	callID   string

	// sleep / schedule 可注入，测试中替换以消除真实等待。
	sleep    func(ctx context.Context, d time.Duration) error
	schedule func(d time.Duration, fn func())
}

// Option 执行器配置选项。
type Option[T any] func(*Executor[T])

// WithPolicy 设置重试策略。nil 被静默忽略（保持默认值）。
func WithPolicy[T any](p xretry.Policy) Option[T] {
	return func(e *Executor[T]) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithConnectivity 设置连接观察器。nil 被静默忽略（保持 AlwaysAvailable 语义）。
func WithConnectivity[T any](c Connectivity) Option[T] {
	return func(e *Executor[T]) {
		if c != nil {
			e.conn = c
		}
	}
}

// WithLogger 设置日志记录器。nil 被静默忽略。
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(e *Executor[T]) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver 设置观测接口。nil 被静默忽略。
func WithObserver[T any](observer xmetrics.Observer) Option[T] {
	return func(e *Executor[T]) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// WithBreaker 设置熔断器，保护底层传输调用。
// 熔断拒绝映射为通用网络失败，且不消耗重试预算（快速失败）。
func WithBreaker[T any](cb *gobreaker.TwoStepCircuitBreaker[any]) Option[T] {
	return func(e *Executor[T]) {
		e.breaker = cb
	}
}

// alwaysAvailable 是默认连接观察器：恒为可用。
// 与 xconn.AlwaysAvailable 行为一致；本地声明避免包间依赖。
type alwaysAvailable struct{}

func (alwaysAvailable) Available() bool      { return true }
func (alwaysAvailable) NotifyRestored(func()) {}

// New 创建执行器。
// call 必须提供 Sync 或 Async 至少其一；session 不可为 nil
// （401/403 分支依赖它，刻意不提供默认实现以免静默吞掉授权失败）。
// 默认值：
//   - 重试策略: xretry.NewStatusPolicy()（3 次重试、100ms 固定退避）
//   - 连接观察: 恒为可用
//   - 日志: slog.Default()
//   - 观测: xmetrics.NoopObserver
func New[T any](call Call[T], session Session, opts ...Option[T]) (*Executor[T], error) {
	if call.Sync == nil && call.Async == nil {
		return nil, ErrMissingCall
	}
	if session == nil {
		return nil, ErrNilSession
	}

	e := &Executor[T]{
		call:     call,
		policy:   xretry.NewStatusPolicy(),
		session:  session,
		conn:     alwaysAvailable{},
		logger:   slog.Default(),
		observer: xmetrics.NoopObserver{},
		callID:   uuid.NewString(),
		sleep:    sleepContext,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CallID 返回本逻辑调用的关联 ID（出现在日志与观测属性中）。
func (e *Executor[T]) CallID() string {
	return e.callID
}

// Perform 以阻塞模式执行逻辑调用。
//
// 控制流：连接门控 → 调用 → 按状态分类处理。
// 可重试状态在预算内于本 goroutine 上退避后重试；
// 401 触发带外重新注册后返回 SessionError（不重放，见包文档）；
// 403 置位挂起标记并返回 SuspendedError；
// 其余失败返回 NetworkError，原始传输错误作为 cause。
func (e *Executor[T]) Perform(ctx context.Context, apiKey string) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if e.call.Sync == nil {
		return zero, ErrMissingSyncCall
	}

	ctx, span := xmetrics.Start(ctx, e.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: metricsOpPerform,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{{Key: "call_id", Value: e.callID}, {Key: "mode", Value: "sync"}},
	})
	result, err := e.performLoop(ctx, apiKey)
	span.End(xmetrics.Result{Err: err})
	return result, err
}

// performLoop 是同步模式的重试循环。
// 重设计说明：原始实现通过自递归复用同一策略对象，这里改为显式有界循环，
// 语义不变（预算由 policy 单调约束），但避免深重试链的栈增长。
func (e *Executor[T]) performLoop(ctx context.Context, apiKey string) (T, error) {
	var zero T

	for {
		if !e.conn.Available() {
			e.notifyConnectionLost()
			return zero, ErrNoConnection
		}

		result, err := e.attemptSync(ctx, apiKey)
		if err == nil {
			return result, nil
		}

		if isBreakerRejection(err) {
			// 熔断拒绝没有 HTTP 响应，也不应按"无响应"参与分类：快速失败
			return zero, &NetworkError{Message: "call rejected by circuit breaker", Cause: err}
		}

		code, ok := statusCode(err)
		if !ok {
			return zero, &NetworkError{Message: "network call failed with null response", Cause: err}
		}

		e.logBadRequest(code, err)

		if e.policy.ShouldRetryForStatusCode(code) && e.policy.Retry() {
			delay := e.policy.DelayBeforeNextRetry()
			e.logger.Debug("xcall: retrying after transient failure",
				"call_id", e.callID, "status", code, "delay", delay)
			if serr := e.sleep(ctx, delay); serr != nil {
				return zero, serr
			}
			continue
		}

		switch code {
		case http.StatusUnauthorized:
			// 同步路径：触发重新注册（带外、fire-and-forget）但不重放原调用。
			// context.WithoutCancel：重新注册的生命周期不应随本次调用结束而取消。
			e.logger.Warn("xcall: session invalid, triggering re-registration",
				"call_id", e.callID)
			e.session.ReRegisterAsync(context.WithoutCancel(ctx), nil)
			return zero, &SessionError{Cause: err}

		case http.StatusForbidden:
			e.logger.Warn("xcall: user suspended by remote service", "call_id", e.callID)
			e.session.SetSuspended(true)
			return zero, &SuspendedError{Cause: err}

		default:
			return zero, &NetworkError{Message: "network call failed", StatusCode: code, Cause: err}
		}
	}
}

// attemptSync 执行一次同步传输尝试（经熔断器，带观测跨度）。
func (e *Executor[T]) attemptSync(ctx context.Context, apiKey string) (T, error) {
	var zero T

	ctx, span := xmetrics.Start(ctx, e.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: metricsOpAttempt,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{{Key: "call_id", Value: e.callID}},
	})

	var done func(bool)
	if e.breaker != nil {
		var berr error
		done, berr = e.breaker.Allow()
		if berr != nil {
			span.End(xmetrics.Result{Err: berr})
			return zero, berr
		}
	}

	result, err := e.call.Sync(ctx, apiKey)
	if done != nil {
		done(err == nil)
	}
	span.End(xmetrics.Result{Err: err})
	return result, err
}

// PerformAsync 以回调模式执行逻辑调用。
// listener 的三个终态入口恰好触发其一；listener 为 nil 时不会 panic，
// 终态被静默丢弃（与所有分支的判空约定一致）。
func (e *Executor[T]) PerformAsync(ctx context.Context, apiKey string, listener ResultListener[T]) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !e.conn.Available() {
		e.notifyConnectionLost()
		e.emitError(listener, ErrNoConnection)
		return
	}

	async := e.call.Async
	if async == nil {
		async = deriveAsync(e.call.Sync)
	}

	ctx, span := xmetrics.Start(ctx, e.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: metricsOpAttempt,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{{Key: "call_id", Value: e.callID}, {Key: "mode", Value: "async"}},
	})

	var done func(bool)
	if e.breaker != nil {
		var berr error
		done, berr = e.breaker.Allow()
		if berr != nil {
			span.End(xmetrics.Result{Err: berr})
			e.emitError(listener, &NetworkError{Message: "call rejected by circuit breaker", Cause: berr})
			return
		}
	}

	async(ctx, apiKey, &transportHandler[T]{
		executor: e,
		ctx:      ctx,
		apiKey:   apiKey,
		listener: listener,
		span:     span,
		brDone:   done,
	})
}

// transportHandler 接收传输层回调并驱动分类处理。
type transportHandler[T any] struct {
	executor *Executor[T]
	ctx      context.Context
	apiKey   string
	listener ResultListener[T]
	span     xmetrics.Span
	brDone   func(success bool)
}

// Success 实现 TransportListener：成功终态，结果原样转发。
func (h *transportHandler[T]) Success(result T) {
	if h.brDone != nil {
		h.brDone(true)
	}
	h.span.End(xmetrics.Result{})
	if h.listener != nil {
		h.listener.Success(result)
	}
}

// Failure 实现 TransportListener：按状态码分类处理。
// 注意：本方法在传输回调 goroutine 上执行，重试退避用定时器重新发起，
// 绝不在此 goroutine 上睡眠。
func (h *transportHandler[T]) Failure(err error) {
	if h.brDone != nil {
		h.brDone(false)
	}
	h.span.End(xmetrics.Result{Err: err})

	e := h.executor

	code, ok := statusCode(err)
	if !ok {
		e.emitError(h.listener, &NetworkError{Message: "network call failed with null response", Cause: err})
		return
	}

	e.logBadRequest(code, err)

	if e.policy.ShouldRetryForStatusCode(code) && e.policy.Retry() {
		delay := e.policy.DelayBeforeNextRetry()
		e.logger.Debug("xcall: scheduling retry after transient failure",
			"call_id", e.callID, "status", code, "delay", delay)
		e.schedule(delay, func() {
			e.PerformAsync(h.ctx, h.apiKey, h.listener)
		})
		return
	}

	switch code {
	case http.StatusUnauthorized:
		e.logger.Warn("xcall: session invalid, re-registering before replay",
			"call_id", e.callID)
		e.session.ReRegisterAsync(h.ctx, func(rerr error) {
			if rerr != nil {
				// 重新注册失败：原调用不重放，重新注册错误即终态
				e.emitError(h.listener, rerr)
				return
			}
			// 重新注册成功：整条逻辑调用从连接门控起重放一次
			e.PerformAsync(h.ctx, h.apiKey, h.listener)
		})

	case http.StatusForbidden:
		e.logger.Warn("xcall: user suspended by remote service", "call_id", e.callID)
		e.session.SetSuspended(true)
		if h.listener != nil {
			h.listener.UserSuspended()
		}

	default:
		e.emitError(h.listener, &NetworkError{Message: "network call failed", StatusCode: code, Cause: err})
	}
}

// notifyConnectionLost 触发恢复监听登记钩子。
func (e *Executor[T]) notifyConnectionLost() {
	e.logger.Warn("xcall: no connection available, failing fast", "call_id", e.callID)
	if e.call.OnConnectionLost != nil {
		e.call.OnConnectionLost()
	}
}

// emitError 带判空地交付错误终态。
func (e *Executor[T]) emitError(listener ResultListener[T], err error) {
	e.logger.Debug("xcall: call failed", "call_id", e.callID, "error", err)
	if listener != nil {
		listener.Error(err)
	}
}

// logBadRequest 在 400 时记录完整响应体。仅诊断用途，不改变控制流。
func (e *Executor[T]) logBadRequest(code int, err error) {
	if code != http.StatusBadRequest {
		return
	}
	e.logger.Error("xcall: client bad request",
		"call_id", e.callID,
		"body", string(responseBody(err)),
		"error", err)
}

// isBreakerRejection 判断错误是否为熔断器拒绝。
// 只匹配 gobreaker 的哨兵错误，不把业务错误误归因给熔断器。
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// deriveAsync 从同步实现派生异步实现。
func deriveAsync[T any](sync func(ctx context.Context, apiKey string) (T, error)) func(context.Context, string, TransportListener[T]) {
	return func(ctx context.Context, apiKey string, listener TransportListener[T]) {
		go func() {
			result, err := sync(ctx, apiKey)
			if err != nil {
				listener.Failure(err)
				return
			}
			listener.Success(result)
		}()
	}
}

// sleepContext 可被 context 打断的等待。
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
