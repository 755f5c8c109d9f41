package xretry

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// FixedBackoff 固定延迟退避。
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff 创建固定延迟退避。负值被钳制为 0。
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	if delay < 0 {
		delay = 0
	}
	return &FixedBackoff{delay: delay}
}

func (b *FixedBackoff) NextDelay(_ int) time.Duration {
	return b.delay
}

// ExponentialBackoff 指数退避。
// delay = min(initial * multiplier^(attempt-1) * (1 ± jitter), max)
type ExponentialBackoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
}

// ExponentialOption 指数退避配置选项。
type ExponentialOption func(*ExponentialBackoff)

// WithInitialDelay 设置初始延迟。d <= 0 时静默忽略。
func WithInitialDelay(d time.Duration) ExponentialOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.initial = d
		}
	}
}

// WithMaxDelay 设置延迟上限。d <= 0 时静默忽略。
func WithMaxDelay(d time.Duration) ExponentialOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.max = d
		}
	}
}

// WithMultiplier 设置乘数因子。小于 1.0 的值被忽略（保持默认值 2.0）。
func WithMultiplier(m float64) ExponentialOption {
	return func(b *ExponentialBackoff) {
		if m >= 1 {
			b.multiplier = m
		}
	}
}

// WithJitter 设置抖动因子，钳制到 [0, 1]。
func WithJitter(j float64) ExponentialOption {
	return func(b *ExponentialBackoff) {
		if j < 0 {
			j = 0
		} else if j > 1 {
			j = 1
		}
		b.jitter = j
	}
}

// NewExponentialBackoff 创建指数退避。
// 默认值：initial 100ms、max 30s、multiplier 2.0、jitter 0.1。
func NewExponentialBackoff(opts ...ExponentialOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initial:    100 * time.Millisecond,
		max:        30 * time.Second,
		multiplier: 2.0,
		jitter:     0.1,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.max < b.initial {
		b.max = b.initial
	}
	return b
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.initial) * math.Pow(b.multiplier, float64(attempt-1))

	if b.jitter > 0 {
		delay *= 1.0 + (randomFloat64()*2-1)*b.jitter
	}

	// attempt 极大时 math.Pow 溢出为 +Inf，再乘抖动可能产生 NaN。
	// NaN 的所有比较均为 false，会绕过上限判断，因此显式归位到 max。
	if math.IsNaN(delay) || delay < 0 {
		return b.max
	}
	if delay >= float64(b.max) {
		return b.max
	}
	return time.Duration(delay)
}

// NoBackoff 无延迟退避。
type NoBackoff struct{}

// NewNoBackoff 创建无延迟退避。
func NewNoBackoff() *NoBackoff {
	return &NoBackoff{}
}

func (b *NoBackoff) NextDelay(_ int) time.Duration {
	return 0
}

// 确保实现了接口
var (
	_ Backoff = (*FixedBackoff)(nil)
	_ Backoff = (*ExponentialBackoff)(nil)
	_ Backoff = (*NoBackoff)(nil)
)

const (
	floatBits  = 53
	floatScale = 1.0 / (1 << floatBits)
)

// randomFloat64 返回 [0, 1) 区间的安全随机数。
// crypto/rand 读取失败时返回 0，等价于无抖动（安全默认值）。
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * floatScale
}
