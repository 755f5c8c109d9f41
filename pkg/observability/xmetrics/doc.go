// Package xmetrics 提供统一的观测抽象（Observer/Span）及 OpenTelemetry 实现。
//
// # 设计理念
//
// 业务包不直接依赖 OTel API，而是依赖最小化的 Observer 接口：
//   - Observer.Start 开启一次观测跨度
//   - Span.End 结束并记录结果
//
// 这样调用方可以注入 NoopObserver（默认，零开销）、OTel 实现，
// 或测试用的录制实现。
//
// # OTel 实现
//
// NewOTelObserver 同时产出追踪和指标：
//   - xcall.operation.total 计数器（component/operation/status 维度）
//   - xcall.operation.duration 时长直方图（秒）
//   - 每次 Start 对应一个 client/internal span
//
// Span.End 幂等，多次调用只记录一次指标。
//
// # 使用方式
//
//	ctx, span := xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
//	    Component: "xcall",
//	    Operation: "attempt",
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
package xmetrics
