// Package xretry 提供面向 HTTP 状态码的有状态重试策略。
//
// # 设计理念
//
// xretry 与通用重试库不同：它不驱动重试循环，只负责回答三个问题——
//   - ShouldRetryForStatusCode：这个状态码值得重试吗
//   - Retry：预算还允许再试一次吗（有副作用，消耗一次预算）
//   - DelayBeforeNextRetry：下一次尝试前等多久
//
// 重试循环由调用方（典型为 xcall.Executor）驱动。这样同一个 Policy 实例
// 可以跨越同一逻辑调用的多次尝试持续计数，包括 401 重放链路。
//
// # 状态与单调性
//
// Policy 是有状态的：Retry() 每次调用递增内部计数器并返回是否允许继续。
// 一旦返回 false，同一实例后续永远返回 false（单调耗尽）。
// 因此 Policy 实例与一次逻辑调用一一对应，不可跨调用复用。
//
// # 退避策略
//
// 内置三种退避：
//   - FixedBackoff：固定延迟
//   - ExponentialBackoff：指数退避（crypto/rand 抖动）
//   - NoBackoff：无延迟
//
// # 使用方式
//
//	policy := xretry.NewStatusPolicy(
//	    xretry.WithMaxRetries(3),
//	    xretry.WithBackoff(xretry.NewFixedBackoff(100*time.Millisecond)),
//	)
//	for {
//	    err := doCall()
//	    code, ok := statusOf(err)
//	    if ok && policy.ShouldRetryForStatusCode(code) && policy.Retry() {
//	        time.Sleep(policy.DelayBeforeNextRetry())
//	        continue
//	    }
//	    return err
//	}
//
// # 并发安全
//
// StatusPolicy 的计数器由互斥锁保护。虽然约定上重试是严格串行的，
// 但加锁保证了误用（并发调用 Retry）时单调性依然成立。
package xretry
