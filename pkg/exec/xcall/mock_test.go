package xcall

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// 测试替身
// =============================================================================

// fakeStatusError 模拟携带 HTTP 状态与响应体的传输错误。
type fakeStatusError struct {
	code int
	body []byte
}

func (e *fakeStatusError) Error() string {
	return fmt.Sprintf("transport error: status=%d", e.code)
}

func (e *fakeStatusError) HTTPStatusCode() int { return e.code }

func (e *fakeStatusError) ResponseBody() []byte { return e.body }

// fakeSession 记录会话控制器交互。
// ReRegisterAsync 同步回调 done，保证测试确定性。
type fakeSession struct {
	mu            sync.Mutex
	reRegisters   int
	reRegisterErr error
	suspendedSets int
	suspended     bool
}

func (s *fakeSession) ReRegisterAsync(_ context.Context, done func(error)) {
	s.mu.Lock()
	s.reRegisters++
	err := s.reRegisterErr
	s.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (s *fakeSession) SetSuspended(suspended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspendedSets++
	s.suspended = suspended
}

func (s *fakeSession) stats() (reRegisters, suspendedSets int, suspended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reRegisters, s.suspendedSets, s.suspended
}

// fakeConn 可控的连接观察器。
type fakeConn struct {
	mu        sync.Mutex
	available bool
	restored  []func()
}

func (c *fakeConn) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *fakeConn) NotifyRestored(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restored = append(c.restored, fn)
}

// recordingListener 记录终态回调。终态触发时关闭 done。
type recordingListener[T any] struct {
	mu        sync.Mutex
	successes []T
	errors    []error
	suspended int
	done      chan struct{}
}

func newRecordingListener[T any]() *recordingListener[T] {
	return &recordingListener[T]{done: make(chan struct{}, 8)}
}

func (l *recordingListener[T]) Success(result T) {
	l.mu.Lock()
	l.successes = append(l.successes, result)
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *recordingListener[T]) Error(err error) {
	l.mu.Lock()
	l.errors = append(l.errors, err)
	l.mu.Unlock()
	l.done <- struct{}{}
}

func (l *recordingListener[T]) UserSuspended() {
	l.mu.Lock()
	l.suspended++
	l.mu.Unlock()
	l.done <- struct{}{}
}

// wait 等待一次终态回调。
func (l *recordingListener[T]) wait() bool {
	select {
	case <-l.done:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func (l *recordingListener[T]) terminalCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.successes) + len(l.errors) + l.suspended
}

// instantDelays 把执行器的等待替换为即时执行并记录延迟。
func instantDelays[T any](e *Executor[T]) *[]time.Duration {
	var (
		mu       sync.Mutex
		recorded []time.Duration
	)
	e.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		recorded = append(recorded, d)
		mu.Unlock()
		return nil
	}
	e.schedule = func(d time.Duration, fn func()) {
		mu.Lock()
		recorded = append(recorded, d)
		mu.Unlock()
		fn()
	}
	return &recorded
}
