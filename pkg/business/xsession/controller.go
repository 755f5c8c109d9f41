package xsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xcall/pkg/exec/xcall"
	"github.com/omeyang/xcall/pkg/net/xhttpc"
	"github.com/omeyang/xcall/pkg/observability/xmetrics"
)

// MetricsComponent 观测维度中的组件名。
const MetricsComponent = "xsession"

const (
	metricsOpRegister = "register"

	// sfKeyReRegister singleflight 去重键。
	// 重新注册是进程级动作，同一时刻只允许一个在途。
	sfKeyReRegister = "re-register"
)

// 默认配置值。
const (
	// DefaultRegisterPath 默认注册端点路径。
	DefaultRegisterPath = "/v1/sessions"

	// DefaultMaxAttempts 注册请求的默认最大尝试次数（含首次）。
	DefaultMaxAttempts = 3

	// DefaultRetryDelay 注册重试的默认基础延迟。
	DefaultRetryDelay = 200 * time.Millisecond

	// DefaultSessionTTL 会话凭据的默认本地缓存时长。
	DefaultSessionTTL = 30 * time.Minute

	// sessionCacheSize 凭据缓存容量。单账号场景下 16 已绰绰有余。
	sessionCacheSize = 16
)

// Credentials 注册会话所需的既有用户信息。
type Credentials struct {
	// UserID 用户标识（必填）。
	UserID string `json:"user_id"`

	// APIKey 用户 API Key。
	APIKey string `json:"api_key,omitempty"`

	// DeviceID 设备标识。
	DeviceID string `json:"device_id,omitempty"`
}

// Session 注册成功后的会话凭据。
type Session struct {
	// ID 会话标识，后续请求的认证凭据。
	ID string

	// ExpiresAt 会话过期时间。
	ExpiresAt time.Time
}

// Valid 报告会话在给定时刻是否仍然有效。
func (s Session) Valid(now time.Time) bool {
	return s.ID != "" && now.Before(s.ExpiresAt)
}

// registerResponse 注册端点的响应体。
type registerResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"` // 秒
}

// Config 控制器配置。
type Config struct {
	// HTTP 传输客户端（必填）。
	HTTP *xhttpc.Client

	// Credentials 注册用的用户信息（UserID 必填）。
	Credentials Credentials

	// RegisterPath 注册端点路径。零值使用 DefaultRegisterPath。
	RegisterPath string

	// MaxAttempts 注册请求的最大尝试次数（含首次）。零值使用 DefaultMaxAttempts。
	MaxAttempts int

	// RetryDelay 注册重试的基础延迟（指数退避的起点）。零值使用 DefaultRetryDelay。
	RetryDelay time.Duration

	// SessionTTL 会话凭据的本地缓存时长，同时作为响应未携带
	// expires_in 时的回退过期时长。零值使用 DefaultSessionTTL。
	SessionTTL time.Duration

	// Logger 日志记录器。
	Logger *slog.Logger

	// Observer 可观测性接口。
	Observer xmetrics.Observer
}

// Controller 会话控制器。
//
// 实现执行器消费的会话接口（ReRegisterAsync / SetSuspended），
// 同时提供同步注册入口供启动流程使用。
// 所有方法并发安全。
type Controller struct {
	http         *xhttpc.Client
	creds        Credentials
	registerPath string
	maxAttempts  int
	retryDelay   time.Duration
	sessionTTL   time.Duration
	logger       *slog.Logger
	observer     xmetrics.Observer

	// sessions 以 UserID 为键缓存会话凭据。
	// 过期由缓存 TTL 与 Session.ExpiresAt 双重约束。
	sessions *expirable.LRU[string, Session]

	sf        singleflight.Group
	suspended atomic.Bool
}

// 确保 Controller 满足执行器的会话接口
var _ xcall.Session = (*Controller)(nil)

// NewController 创建会话控制器。
func NewController(cfg Config) (*Controller, error) {
	if cfg.HTTP == nil {
		return nil, ErrNilHTTPClient
	}
	if cfg.Credentials.UserID == "" {
		return nil, ErrMissingUserID
	}
	if cfg.RegisterPath == "" {
		cfg.RegisterPath = DefaultRegisterPath
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = xmetrics.NoopObserver{}
	}

	return &Controller{
		http:         cfg.HTTP,
		creds:        cfg.Credentials,
		registerPath: cfg.RegisterPath,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
		sessionTTL:   cfg.SessionTTL,
		logger:       cfg.Logger,
		observer:     cfg.Observer,
		sessions:     expirable.NewLRU[string, Session](sessionCacheSize, nil, cfg.SessionTTL),
	}, nil
}

// Current 返回当前缓存的有效会话。
// 没有缓存或已过期时返回 false。
func (c *Controller) Current() (Session, bool) {
	session, ok := c.sessions.Get(c.creds.UserID)
	if !ok || !session.Valid(time.Now()) {
		return Session{}, false
	}
	return session, true
}

// Suspended 报告账号是否处于挂起状态。
func (c *Controller) Suspended() bool {
	return c.suspended.Load()
}

// SetSuspended 设置账号挂起标记。
// 置位后 Register / ReRegister 被本地拒绝，直到标记被清除。
func (c *Controller) SetSuspended(suspended bool) {
	prev := c.suspended.Swap(suspended)
	if suspended && !prev {
		c.logger.Warn("xsession: account marked suspended",
			slog.String("user_id", c.creds.UserID))
	}
	if !suspended && prev {
		c.logger.Info("xsession: account suspension cleared",
			slog.String("user_id", c.creds.UserID))
	}
}

// Register 同步注册会话。
// 瞬时失败（传输失败、5xx）在 MaxAttempts 内指数退避重试；
// 4xx 视为永久失败，立即返回。成功后会话凭据写入本地缓存。
func (c *Controller) Register(ctx context.Context) (Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.suspended.Load() {
		return Session{}, ErrSuspended
	}

	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: metricsOpRegister,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{{Key: "user_id", Value: c.creds.UserID}},
	})

	session, err := retry.NewWithData[Session](
		retry.Context(ctx),
		retry.Attempts(attemptsForRetry(c.maxAttempts)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("xsession: retrying registration",
				slog.Uint64("attempt", uint64(n)+1),
				slog.String("error", err.Error()))
		}),
		retry.LastErrorOnly(true),
	).Do(func() (Session, error) {
		return c.registerOnce(ctx)
	})
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		return Session{}, err
	}

	c.sessions.Add(c.creds.UserID, session)
	c.logger.Info("xsession: session registered",
		slog.String("user_id", c.creds.UserID),
		slog.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// ReRegister 用既有用户信息重新注册会话。
// 并发触发被去重：同一时刻只有一个重新注册在途，并发调用方共享其结果。
func (c *Controller) ReRegister(ctx context.Context) (Session, error) {
	result, err, shared := c.sf.Do(sfKeyReRegister, func() (any, error) {
		// 旧会话已被远端判定失效，先行丢弃
		c.sessions.Remove(c.creds.UserID)
		return c.Register(ctx)
	})
	if shared {
		c.logger.Debug("xsession: re-registration deduplicated",
			slog.String("user_id", c.creds.UserID))
	}
	if err != nil {
		return Session{}, err
	}

	session, ok := result.(Session)
	if !ok {
		return Session{}, fmt.Errorf("xsession: unexpected result type from singleflight")
	}
	return session, nil
}

// ReRegisterAsync 异步重新注册会话。
// done 在终态时恰好回调一次（nil 表示成功）；done 为 nil 表示
// 发起方不关心结果（fire-and-forget）。
func (c *Controller) ReRegisterAsync(ctx context.Context, done func(err error)) {
	go func() {
		_, err := c.ReRegister(ctx)
		if err != nil {
			c.logger.Warn("xsession: re-registration failed",
				slog.String("user_id", c.creds.UserID),
				slog.String("error", err.Error()))
		}
		if done != nil {
			done(err)
		}
	}()
}

// registerOnce 发送一次注册请求。
func (c *Controller) registerOnce(ctx context.Context) (Session, error) {
	resp, err := xhttpc.PostJSON[registerResponse](ctx, c.http, c.registerPath, nil, c.creds)
	if err != nil {
		return Session{}, fmt.Errorf("xsession: register request failed: %w", err)
	}
	if resp.SessionID == "" {
		return Session{}, ErrEmptySessionID
	}

	ttl := c.sessionTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	return Session{
		ID:        resp.SessionID,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// attemptsForRetry 将配置的尝试次数转换为 retry-go 的 uint 参数。
func attemptsForRetry(n int) uint {
	if n <= 0 {
		return 1
	}
	return uint(n)
}

// isTransient 判断注册失败是否值得重试。
// 规则：传输失败（无 HTTP 响应）与 5xx 可重试；
// 4xx 与响应内容缺陷（缺少 session_id）为永久失败。
func isTransient(err error) bool {
	if errors.Is(err, ErrEmptySessionID) {
		return false
	}
	var se *xhttpc.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	// 无状态码：请求未到达服务端或响应读取失败
	return true
}
