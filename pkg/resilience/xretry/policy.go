package xretry

import (
	"sync"
	"time"
)

// DefaultMaxRetries 默认最大重试次数（不含首次尝试）。
const DefaultMaxRetries = 3

// defaultRetryableStatus 默认可重试的 HTTP 状态码。
// 408 请求超时、429 限流、5xx 网关/服务端瞬时故障。
// 401/403 被刻意排除：它们是授权语义，由调用方走重新注册/挂起分支。
var defaultRetryableStatus = []int{408, 429, 500, 502, 503, 504}

// StatusPolicy 基于 HTTP 状态码分类的有状态重试策略。
// 必须通过 NewStatusPolicy 创建，实例与一次逻辑调用一一对应。
type StatusPolicy struct {
	mu         sync.Mutex
	attempts   int  // 已消耗的重试次数
	exhausted  bool // 单调耗尽标记
	maxRetries int
	retryable  map[int]struct{}
	backoff    Backoff
}

// 确保 *StatusPolicy 实现 Policy 接口
var _ Policy = (*StatusPolicy)(nil)

// StatusPolicyOption 策略配置选项。
type StatusPolicyOption func(*StatusPolicy)

// WithMaxRetries 设置最大重试次数（不含首次尝试）。
// n < 0 会被钳制为 0（即永不重试）。
func WithMaxRetries(n int) StatusPolicyOption {
	return func(p *StatusPolicy) {
		if n < 0 {
			n = 0
		}
		p.maxRetries = n
	}
}

// WithRetryableStatus 设置可重试的状态码集合，覆盖默认集合。
// 空切片表示没有任何状态码可重试。
func WithRetryableStatus(codes ...int) StatusPolicyOption {
	return func(p *StatusPolicy) {
		p.retryable = make(map[int]struct{}, len(codes))
		for _, c := range codes {
			p.retryable[c] = struct{}{}
		}
	}
}

// WithBackoff 设置退避策略。
// 传入 nil 会被静默忽略（保持默认值），与 WithMaxRetries 的钳制风格一致。
func WithBackoff(b Backoff) StatusPolicyOption {
	return func(p *StatusPolicy) {
		if b != nil {
			p.backoff = b
		}
	}
}

// NewStatusPolicy 创建状态码重试策略。
// 默认值：
//   - maxRetries: 3
//   - 可重试状态码: 408, 429, 500, 502, 503, 504
//   - 退避: FixedBackoff(100ms)
func NewStatusPolicy(opts ...StatusPolicyOption) *StatusPolicy {
	p := &StatusPolicy{
		maxRetries: DefaultMaxRetries,
		backoff:    NewFixedBackoff(100 * time.Millisecond),
	}
	p.retryable = make(map[int]struct{}, len(defaultRetryableStatus))
	for _, c := range defaultRetryableStatus {
		p.retryable[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldRetryForStatusCode 判断状态码是否可重试。无副作用。
func (p *StatusPolicy) ShouldRetryForStatusCode(code int) bool {
	_, ok := p.retryable[code]
	return ok
}

// Retry 消耗一次重试预算。
//
// 设计决策: exhausted 标记独立于计数器，保证单调性——即使调用方在耗尽后
// 继续调用 Retry()，也不会因计数器溢出等边界情况重新放行。
func (p *StatusPolicy) Retry() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exhausted {
		return false
	}
	if p.attempts >= p.maxRetries {
		p.exhausted = true
		return false
	}
	p.attempts++
	return true
}

// DelayBeforeNextRetry 返回下一次尝试前的等待时长。
// 以当前已消耗的重试次数作为退避的 attempt 参数（从 1 开始）。
func (p *StatusPolicy) DelayBeforeNextRetry() time.Duration {
	p.mu.Lock()
	attempt := p.attempts
	p.mu.Unlock()

	if attempt < 1 {
		attempt = 1
	}
	return p.backoff.NextDelay(attempt)
}

// Attempts 返回已消耗的重试次数。用于日志与测试断言。
func (p *StatusPolicy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}
