// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 统一可观测性接口（指标、追踪）
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 观测失败不影响业务主流程
package observability
