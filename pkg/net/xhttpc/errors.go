package xhttpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// 配置错误
// =============================================================================

var (
	// ErrMissingBaseURL 表示基础 URL 未配置。
	ErrMissingBaseURL = errors.New("xhttpc: missing base url")

	// ErrInvalidBaseURL 表示基础 URL 格式无效。
	// 必须包含协议和主机名，例如 "https://api.example.com"。
	ErrInvalidBaseURL = errors.New("xhttpc: invalid base url: must include scheme and host (e.g., https://api.example.com)")

	// ErrInsecureBaseURL 表示基础 URL 使用了非 HTTPS 协议。
	// 请求携带 API Key 与 Bearer Token，明文 HTTP 会暴露敏感信息。
	// 如需在开发/测试环境中使用 HTTP，请设置 Config.AllowInsecure = true。
	ErrInsecureBaseURL = errors.New("xhttpc: base url must use https:// (set AllowInsecure=true for development)")
)

// =============================================================================
// 请求错误
// =============================================================================

var (
	// ErrResponseTooLarge 表示响应体超过最大限制。
	// 默认限制为 10MB，超过此限制的响应会被拒绝而非截断。
	ErrResponseTooLarge = errors.New("xhttpc: response body exceeds maximum size limit")

	// ErrUnauthorized 表示认证失败（401）。
	ErrUnauthorized = errors.New("xhttpc: unauthorized")

	// ErrForbidden 表示权限不足（403）。
	ErrForbidden = errors.New("xhttpc: forbidden")

	// ErrNotFound 表示资源不存在（404）。
	ErrNotFound = errors.New("xhttpc: not found")

	// ErrServerError 表示服务端错误（5xx）。
	ErrServerError = errors.New("xhttpc: server error")
)

// =============================================================================
// 状态错误包装
// =============================================================================

// StatusError 表示收到了非 2xx 的 HTTP 响应。
// Body 保留原始响应体（未解析、已限长），供上层诊断日志使用。
type StatusError struct {
	StatusCode int
	Body       []byte

	// Code / Message 来自响应体的结构化错误字段（解析失败时为零值）。
	Code    int
	Message string
}

// newStatusError 从响应体构造状态错误。
// 响应体按 {"code":..,"message":..} 尝试解析；解析失败不影响错误本身。
func newStatusError(statusCode int, body []byte) *StatusError {
	e := &StatusError{StatusCode: statusCode, Body: body}
	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	//nolint:errcheck // 解析失败使用零值即可
	_ = json.Unmarshal(body, &apiResp)
	e.Code = apiResp.Code
	e.Message = apiResp.Message
	return e
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xhttpc: api error: status=%d, code=%d, message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("xhttpc: api error: status=%d", e.StatusCode)
}

// HTTPStatusCode 返回响应状态码。
// 满足执行器的状态提取约定（xcall.StatusCarrier）。
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ResponseBody 返回原始响应体。
// 满足执行器的响应体提取约定（xcall.BodyCarrier）。
func (e *StatusError) ResponseBody() []byte {
	return e.Body
}

// Is 实现 errors.Is 接口。
// 设计决策: 使用直接 == 比较而非 errors.Is，因为 target 参数是调用方传入的哨兵错误，
// 而 ErrUnauthorized 等均为 errors.New 创建的简单值，无需递归 Unwrap。
func (e *StatusError) Is(target error) bool {
	switch {
	case e.StatusCode == 401:
		return target == ErrUnauthorized
	case e.StatusCode == 403:
		return target == ErrForbidden
	case e.StatusCode == 404:
		return target == ErrNotFound
	case e.StatusCode >= 500:
		return target == ErrServerError
	}
	return false
}
