package xsession

import "errors"

var (
	// ErrNilHTTPClient 表示 HTTP 客户端未提供。
	ErrNilHTTPClient = errors.New("xsession: nil http client")

	// ErrMissingUserID 表示用户 ID 未配置。
	ErrMissingUserID = errors.New("xsession: missing user_id")

	// ErrSuspended 表示账号已被标记挂起，注册请求被本地拒绝。
	// 挂起标记由远端 403 触发（见执行器的分类处理），
	// 清除需调用 SetSuspended(false)。
	ErrSuspended = errors.New("xsession: account suspended, registration refused")

	// ErrSessionNotFound 表示本地没有可用的会话凭据。
	ErrSessionNotFound = errors.New("xsession: session not found")

	// ErrEmptySessionID 表示注册响应中缺少会话 ID。
	ErrEmptySessionID = errors.New("xsession: register response missing session_id")
)
