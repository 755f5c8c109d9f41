// Package xhttpc 提供面向 JSON API 的 HTTP 传输客户端。
//
// # 设计理念
//
// 执行器（pkg/exec/xcall）只消费"携带状态码的错误"这一抽象，
// 本包是其默认的具体传输：非 2xx 响应被转换为 *StatusError，
// 完整保留状态码与原始响应体，供上层按状态分类与诊断。
//
// # 核心功能
//
//   - JSON 请求/响应（Get / Post / RequestWithAuth）
//   - 泛型端点调用（GetJSON / PostJSON）
//   - 响应体大小限制（10MB，超限拒绝而非截断）
//   - 非 2xx 响应的结构化错误（*StatusError，支持 errors.Is 哨兵匹配）
//
// # 使用示例
//
//	client, err := xhttpc.New(xhttpc.Config{
//		BaseURL: "https://api.example.com",
//	})
//	if err != nil {
//		return err
//	}
//
//	profile, err := xhttpc.GetJSON[Profile](ctx, client, "/v1/profile", nil)
//	if errors.Is(err, xhttpc.ErrUnauthorized) {
//		// 会话失效
//	}
package xhttpc
