package xhttpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omeyang/xcall/pkg/observability/xmetrics"
)

const (
	// DefaultTimeout 默认请求超时时间。
	DefaultTimeout = 30 * time.Second

	// maxResponseSize 最大响应体大小（10MB）。
	// 防止恶意或异常响应导致内存溢出。
	maxResponseSize = 10 * 1024 * 1024
)

// MetricsComponent 观测维度中的组件名。
const MetricsComponent = "xhttpc"

const metricsOpRequest = "http_request"

// 观测属性键。
const (
	metricsAttrMethod = "http_method"
	metricsAttrPath   = "http_path"
)

// =============================================================================
// HTTP 客户端
// =============================================================================

// Client 封装的 HTTP 客户端。
type Client struct {
	client   *http.Client
	baseURL  string
	timeout  time.Duration
	observer xmetrics.Observer
}

// Config 客户端配置。
type Config struct {
	// BaseURL 基础 URL，不含尾部斜杠。
	BaseURL string

	// Timeout 请求超时时间。零值使用 DefaultTimeout。
	Timeout time.Duration

	// TLSConfig TLS 配置。
	TLSConfig *tls.Config

	// AllowInsecure 允许使用 http:// 协议（仅开发/测试环境）。
	AllowInsecure bool

	// Client 自定义 HTTP 客户端。
	// 如果设置，Timeout 与 TLSConfig 将被忽略。
	Client *http.Client

	// Observer 可观测性接口。
	Observer xmetrics.Observer
}

// New 创建 HTTP 客户端。
func New(cfg Config) (*Client, error) {
	if err := validateBaseURL(cfg.BaseURL, cfg.AllowInsecure); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.Client
	if client == nil {
		transport := &http.Transport{
			TLSClientConfig:     cfg.TLSConfig,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
		client = &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		}
	}

	observer := cfg.Observer
	if observer == nil {
		observer = xmetrics.NoopObserver{}
	}

	return &Client{
		client:   client,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		observer: observer,
	}, nil
}

// NewSkipVerify 创建跳过证书验证的 HTTP 客户端。
// 仅用于开发/测试环境，生产环境请勿使用。
func NewSkipVerify(baseURL string, timeout time.Duration) (*Client, error) {
	return New(Config{
		BaseURL: baseURL,
		Timeout: timeout,
		//nolint:gosec // G402: 本函数专为开发测试设计，函数名已明确说明用途
		TLSConfig: &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		},
		AllowInsecure: true,
	})
}

// validateBaseURL 校验基础 URL：必须含协议与主机，默认仅允许 HTTPS。
func validateBaseURL(baseURL string, allowInsecure bool) error {
	if baseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if u.Scheme != "https" && !allowInsecure {
		return ErrInsecureBaseURL
	}
	return nil
}

// Get 发送 GET 请求。
func (c *Client) Get(ctx context.Context, path string, headers map[string]string, response any) error {
	return c.request(ctx, http.MethodGet, path, headers, nil, response)
}

// Post 发送 POST 请求。
func (c *Client) Post(ctx context.Context, path string, headers map[string]string, body, response any) error {
	return c.request(ctx, http.MethodPost, path, headers, body, response)
}

// RequestWithAuth 发送带 Bearer 认证的请求。
// headers 会被克隆，不会修改调用方的原始 map。
func (c *Client) RequestWithAuth(
	ctx context.Context,
	method, path string,
	token string,
	headers map[string]string,
	body, response any,
) error {
	h := make(map[string]string, len(headers)+1)
	maps.Copy(h, headers)
	h["Authorization"] = "Bearer " + token
	return c.request(ctx, method, path, h, body, response)
}

// HTTPClient 返回底层 HTTP 客户端。
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// request 发送 HTTP 请求。
// path 可以是相对路径（如 "/api/token"）或完整 URL（如 "https://host.com/api/token"）。
// 如果 path 是完整 URL，则直接使用；否则与 baseURL 拼接。
func (c *Client) request(
	ctx context.Context,
	method, path string,
	headers map[string]string,
	body, response any,
) error {
	reqURL := c.buildURL(path)

	// 使用 sanitizeURL 去除查询参数，避免观测指标高基数问题
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: metricsOpRequest,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			{Key: metricsAttrMethod, Value: method},
			{Key: metricsAttrPath, Value: sanitizeURL(reqURL)},
		},
	})
	var err error
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	bodyReader, err := buildRequestBody(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		err = fmt.Errorf("xhttpc: create request failed: %w", err)
		return err
	}

	setHeaders(req, headers)

	resp, err := c.client.Do(req)
	if err != nil {
		// 传输失败没有任何 HTTP 响应：不包装状态，交由上层按"无响应"分类
		err = fmt.Errorf("xhttpc: request failed: %w", err)
		return err
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Close 错误无法传播，通常可忽略

	err = handleResponse(resp, response)
	return err
}

// buildURL 构建请求 URL。
// 设计决策: 支持绝对 URL 是有意为之——同一服务域内可能需要跨主机请求。
// baseURL 与 path 拼接时约定：baseURL 不含尾部斜杠，path 以斜杠开头。
func (c *Client) buildURL(path string) string {
	if isAbsoluteURL(path) {
		return path
	}
	return c.baseURL + path
}

// isAbsoluteURL 判断 path 是否为绝对 URL（大小写不敏感）。
// HTTP scheme 规范（RFC 3986 §3.1）要求 scheme 大小写不敏感。
func isAbsoluteURL(path string) bool {
	if len(path) >= 8 && strings.EqualFold(path[:8], "https://") {
		return true
	}
	return len(path) >= 7 && strings.EqualFold(path[:7], "http://")
}

// sanitizeURL 移除 URL 中的查询参数。
func sanitizeURL(rawURL string) string {
	if path, _, found := strings.Cut(rawURL, "?"); found {
		return path
	}
	return rawURL
}

// buildRequestBody 构建请求体。
// 支持以下类型：
//   - nil: 无请求体
//   - string: 直接作为请求体（用于 form-encoded 数据）
//   - []byte: 直接作为请求体
//   - io.Reader: 直接使用
//   - 其他: JSON 序列化
func buildRequestBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	switch v := body.(type) {
	case string:
		return strings.NewReader(v), nil
	case []byte:
		return bytes.NewReader(v), nil
	case io.Reader:
		return v, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("xhttpc: marshal request body failed: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

// setHeaders 设置请求头。
// 设计决策: 仅在 headers 中未包含 Content-Type 时才设置默认值，
// 避免 JSON 默认值覆盖表单编码等其他内容类型。
func setHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
}

// handleResponse 处理 HTTP 响应。
// 非 2xx 响应转换为 *StatusError，原始响应体完整保留。
func handleResponse(resp *http.Response, response any) error {
	// 使用 LimitedReader 读取响应，多读取 1 字节用于检测截断
	lr := &io.LimitedReader{R: resp.Body, N: maxResponseSize + 1}
	respBody, err := io.ReadAll(lr)
	if err != nil {
		return fmt.Errorf("xhttpc: read response body failed: %w", err)
	}

	// 检测响应体是否被截断（读取了超过限制的数据）
	if len(respBody) > maxResponseSize {
		return fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, maxResponseSize)
	}

	if resp.StatusCode >= 400 {
		return newStatusError(resp.StatusCode, respBody)
	}

	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("xhttpc: unmarshal response failed: %w", err)
		}
	}

	return nil
}

// =============================================================================
// 泛型端点调用
// =============================================================================

// GetJSON 发送 GET 请求并解析为 T。
func GetJSON[T any](ctx context.Context, c *Client, path string, headers map[string]string) (T, error) {
	var result T
	if err := c.Get(ctx, path, headers, &result); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// PostJSON 发送 POST 请求并解析为 T。
func PostJSON[T any](ctx context.Context, c *Client, path string, headers map[string]string, body any) (T, error) {
	var result T
	if err := c.Post(ctx, path, headers, body, &result); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
