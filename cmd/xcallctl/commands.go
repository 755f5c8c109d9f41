package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xcall/internal/conf"
	"github.com/omeyang/xcall/pkg/business/xsession"
	"github.com/omeyang/xcall/pkg/exec/xcall"
	"github.com/omeyang/xcall/pkg/net/xconn"
	"github.com/omeyang/xcall/pkg/net/xhttpc"
	"github.com/omeyang/xcall/pkg/resilience/xretry"
)

// exitError 携带退出码的错误。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// usageError 参数错误（退出码 2）。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// createCommands 创建子命令列表。
func createCommands() []*cli.Command {
	return []*cli.Command{
		callCommand(),
		probeCommand(),
	}
}

// =============================================================================
// call 命令
// =============================================================================

func callCommand() *cli.Command {
	return &cli.Command{
		Name:  "call",
		Usage: "执行一次带认证恢复的 API 调用",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (yaml/json)",
			},
			&cli.StringFlag{
				Name:    "method",
				Aliases: []string{"X"},
				Usage:   "HTTP 方法",
				Value:   http.MethodGet,
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "端点路径（相对于 service.base_url）",
				Value: "/",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "请求体（JSON 字符串）",
			},
			&cli.BoolFlag{
				Name:  "async",
				Usage: "使用回调模式执行",
			},
		},
		Action: runCall,
	}
}

func runCall(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		return &usageError{msg: "缺少 --config 参数"}
	}

	settings, err := conf.Load(configPath)
	if err != nil {
		if errors.Is(err, conf.ErrMissingBaseURL) || errors.Is(err, conf.ErrMissingUserID) {
			return &usageError{msg: err.Error()}
		}
		return &exitError{code: 1, err: err}
	}

	logger := newLogger(settings.Log)

	stack, err := buildStack(ctx, settings, logger)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer stack.close()

	result, err := stack.invoke(ctx, callParams{
		method: cmd.String("method"),
		path:   cmd.String("path"),
		data:   cmd.String("data"),
		async:  cmd.Bool("async"),
		apiKey: settings.Session.APIKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, xcall.ErrSuspended):
			return &exitError{code: 1, err: fmt.Errorf("账号已被挂起: %w", err)}
		case errors.Is(err, xcall.ErrNoConnection):
			return &exitError{code: 1, err: fmt.Errorf("连接不可用: %w", err)}
		default:
			return &exitError{code: 1, err: err}
		}
	}

	if len(result) > 0 {
		fmt.Fprintln(os.Stdout, string(result))
	}
	return nil
}

// callParams call 命令的调用参数。
type callParams struct {
	method string
	path   string
	data   string
	async  bool
	apiKey string
}

// callStack 从配置装配出的完整执行栈。
type callStack struct {
	controller *xsession.Controller
	monitor    *xconn.Monitor
	policy     xretry.Policy
	client     *xhttpc.Client
	logger     *slog.Logger
}

// close 释放执行栈持有的资源。
func (s *callStack) close() {
	if s.monitor != nil {
		s.monitor.Stop()
	}
}

// buildStack 从配置装配执行栈：传输客户端、会话控制器、
// 重试策略与可选的连接监控。装配完成后立即注册会话。
func buildStack(ctx context.Context, settings conf.Settings, logger *slog.Logger) (*callStack, error) {
	client, err := xhttpc.New(xhttpc.Config{
		BaseURL:       settings.Service.BaseURL,
		Timeout:       settings.Service.Timeout,
		AllowInsecure: settings.Service.AllowInsecure,
	})
	if err != nil {
		return nil, err
	}

	controller, err := xsession.NewController(xsession.Config{
		HTTP: client,
		Credentials: xsession.Credentials{
			UserID:   settings.Session.UserID,
			APIKey:   settings.Session.APIKey,
			DeviceID: settings.Session.DeviceID,
		},
		RegisterPath: settings.Session.RegisterPath,
		MaxAttempts:  settings.Session.MaxAttempts,
		RetryDelay:   settings.Session.RetryDelay,
		SessionTTL:   settings.Session.TTL,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	stack := &callStack{
		controller: controller,
		policy:     buildPolicy(settings.Retry),
		client:     client,
		logger:     logger,
	}

	if settings.Conn.Target != "" {
		monitor, merr := xconn.NewMonitor(
			xconn.WithProbe(xconn.DialProbe(settings.Conn.Target, settings.Conn.Timeout)),
			xconn.WithInterval(settings.Conn.Interval),
			xconn.WithLogger(logger),
		)
		if merr != nil {
			return nil, merr
		}
		if serr := monitor.Start(ctx); serr != nil {
			return nil, serr
		}
		stack.monitor = monitor
	}

	if _, rerr := controller.Register(ctx); rerr != nil {
		stack.close()
		return nil, fmt.Errorf("初始注册失败: %w", rerr)
	}
	return stack, nil
}

// buildPolicy 从配置构建重试策略。
func buildPolicy(cfg conf.Retry) xretry.Policy {
	opts := []xretry.StatusPolicyOption{
		xretry.WithMaxRetries(cfg.MaxRetries),
		xretry.WithBackoff(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(cfg.InitialDelay),
			xretry.WithMaxDelay(cfg.MaxDelay),
			xretry.WithMultiplier(cfg.Multiplier),
			xretry.WithJitter(cfg.Jitter),
		)),
	}
	if len(cfg.RetryableStatuses) > 0 {
		opts = append(opts, xretry.WithRetryableStatus(cfg.RetryableStatuses...))
	}
	return xretry.NewStatusPolicy(opts...)
}

// invoke 发起一次逻辑调用。
func (s *callStack) invoke(ctx context.Context, params callParams) (json.RawMessage, error) {
	var body any
	if params.data != "" {
		body = params.data
	}

	call := xcall.Call[json.RawMessage]{
		Sync: func(ctx context.Context, apiKey string) (json.RawMessage, error) {
			headers := map[string]string{}
			if apiKey != "" {
				headers["X-Api-Key"] = apiKey
			}

			token := ""
			if session, ok := s.controller.Current(); ok {
				token = session.ID
			}

			var result json.RawMessage
			err := s.client.RequestWithAuth(ctx, params.method, params.path, token, headers, body, &result)
			return result, err
		},
		OnConnectionLost: func() {
			s.logger.Warn("xcallctl: connection lost, waiting for restoration")
		},
	}

	opts := []xcall.Option[json.RawMessage]{
		xcall.WithPolicy[json.RawMessage](s.policy),
		xcall.WithLogger[json.RawMessage](s.logger),
	}
	if s.monitor != nil {
		opts = append(opts, xcall.WithConnectivity[json.RawMessage](s.monitor))
	}

	executor, err := xcall.New(call, s.controller, opts...)
	if err != nil {
		return nil, err
	}

	if !params.async {
		return executor.Perform(ctx, params.apiKey)
	}
	return performAsync(ctx, executor, params.apiKey)
}

// performAsync 以回调模式执行并阻塞等待终态。
func performAsync(ctx context.Context, executor *xcall.Executor[json.RawMessage], apiKey string) (json.RawMessage, error) {
	type outcome struct {
		result json.RawMessage
		err    error
	}
	done := make(chan outcome, 1)

	executor.PerformAsync(ctx, apiKey, xcall.ListenerFuncs[json.RawMessage]{
		OnSuccess: func(result json.RawMessage) {
			done <- outcome{result: result}
		},
		OnError: func(err error) {
			done <- outcome{err: err}
		},
		OnUserSuspended: func() {
			done <- outcome{err: xcall.ErrSuspended}
		},
	})

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// =============================================================================
// probe 命令
// =============================================================================

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "探测服务连通性",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Usage: "探测目标地址 (host:port)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "探测超时时间",
				Value: xconn.DefaultProbeTimeout,
			},
		},
		Action: runProbe,
	}
}

func runProbe(ctx context.Context, cmd *cli.Command) error {
	target := cmd.String("target")
	if target == "" {
		return &usageError{msg: "缺少 --target 参数"}
	}

	timeout := cmd.Duration("timeout")
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	probe := xconn.DialProbe(target, timeout)
	if err := probe(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "离线: %s (%v)\n", target, err)
		return &exitError{code: 1}
	}

	fmt.Fprintf(os.Stdout, "在线: %s\n", target)
	return nil
}
