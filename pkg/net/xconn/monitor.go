package xconn

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultInterval 默认探测间隔。
	DefaultInterval = 5 * time.Second

	// DefaultProbeTimeout 默认单次探测超时。
	DefaultProbeTimeout = 3 * time.Second
)

// ProbeFunc 探测函数签名。返回 nil 表示连接可用。
type ProbeFunc func(ctx context.Context) error

// DialProbe 返回一个对 addr 做 TCP 拨测的探测函数。
func DialProbe(addr string, timeout time.Duration) ProbeFunc {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return func(ctx context.Context) error {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// Monitor 周期性探测连接可用性，并在恢复时排空一次性回调。
// 必须通过 NewMonitor 创建。所有方法并发安全。
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	logger   *slog.Logger

	available atomic.Bool

	mu      sync.Mutex
	waiters []func()

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// 确保 *Monitor 实现 Watcher 接口
var _ Watcher = (*Monitor)(nil)

// MonitorOption Monitor 配置选项。
type MonitorOption func(*Monitor)

// WithProbe 设置自定义探测函数。优先于 WithTarget。
func WithProbe(probe ProbeFunc) MonitorOption {
	return func(m *Monitor) {
		if probe != nil {
			m.probe = probe
		}
	}
}

// WithTarget 设置 TCP 探测目标地址（host:port）。
func WithTarget(addr string) MonitorOption {
	return func(m *Monitor) {
		if addr != "" && m.probe == nil {
			m.probe = DialProbe(addr, DefaultProbeTimeout)
		}
	}
}

// WithInterval 设置探测间隔。d <= 0 时静默忽略。
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger 设置日志记录器。nil 时使用 slog.Default()。
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMonitor 创建连接监视器。
// 必须配置 WithProbe 或 WithTarget 之一，否则返回 ErrMissingProbe。
// 初始状态视为可用，首次探测（Start 内同步执行）会立即校正。
func NewMonitor(opts ...MonitorOption) (*Monitor, error) {
	m := &Monitor{
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.probe == nil {
		return nil, ErrMissingProbe
	}
	m.available.Store(true)
	return m, nil
}

// Available 返回当前连接是否可用。
func (m *Monitor) Available() bool {
	return m.available.Load()
}

// NotifyRestored 注册一次性的恢复回调。
func (m *Monitor) NotifyRestored(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.waiters = append(m.waiters, fn)
	m.mu.Unlock()
}

// Start 启动探测循环。重复启动返回 ErrAlreadyStarted。
// 首次探测同步执行，返回时 Available 已反映真实状态。
func (m *Monitor) Start(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	m.check(ctx)

	go m.loop(ctx)
	return nil
}

// Stop 停止探测循环并等待其退出。未启动时为空操作。
func (m *Monitor) Stop() {
	if !m.started.Load() || m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check 执行一次探测并处理状态转换。
func (m *Monitor) check(ctx context.Context) {
	err := m.probe(ctx)
	up := err == nil

	was := m.available.Swap(up)
	switch {
	case was && !up:
		m.logger.Warn("xconn: connection lost", "error", err)
	case !was && up:
		m.logger.Info("xconn: connection restored")
		m.drainWaiters()
	}
}

// drainWaiters 取出并触发所有一次性回调。
// 回调各自在独立 goroutine 中执行：恢复回调通常会重新发起网络调用，
// 不能阻塞探测循环。
func (m *Monitor) drainWaiters() {
	m.mu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	for _, fn := range waiters {
		go fn()
	}
}
