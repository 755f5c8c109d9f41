package xretry

import "time"

// Policy 定义有状态的重试策略接口。
//
// 约定：
//   - Retry() 有副作用，每次调用消耗一次重试预算
//   - Retry() 单调：一旦返回 false，同一实例后续永远返回 false
//   - 实例生命周期与一次逻辑调用绑定，不可跨调用复用
type Policy interface {
	// ShouldRetryForStatusCode 判断该 HTTP 状态码是否属于可重试类别。
	// 只做分类，不消耗预算。
	ShouldRetryForStatusCode(code int) bool

	// Retry 申请一次重试机会。
	// 返回 true 表示允许再尝试一次（内部计数器已递增）；
	// 返回 false 表示预算耗尽，且后续调用永远返回 false。
	Retry() bool

	// DelayBeforeNextRetry 返回下一次尝试前的等待时长。
	// 基于当前已消耗的重试次数计算（固定或递增退避）。
	DelayBeforeNextRetry() time.Duration
}

// Backoff 定义退避时长计算接口。
type Backoff interface {
	// NextDelay 返回第 attempt 次重试前的延迟时长。
	// attempt 从 1 开始。
	NextDelay(attempt int) time.Duration
}
