package xmetrics

import "context"

// Kind 表示观测跨度类型。
type Kind int

const (
	// KindInternal 表示进程内操作。
	KindInternal Kind = iota
	// KindClient 表示对外客户端调用。
	KindClient
)

// Status 表示观测结果状态。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// Attr 表示观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 定义观测跨度的创建参数。
type SpanOptions struct {
	// Component 标识组件名称。
	Component string
	// Operation 标识操作名称。
	Operation string
	// Kind 标识跨度类型。
	Kind Kind
	// Attrs 附加属性。
	Attrs []Attr
}

// Result 表示观测跨度结束时的结果。
type Result struct {
	// Status 表示操作状态；为空时根据 Err 推导。
	Status Status
	// Err 表示操作错误。
	Err error
	// Attrs 附加属性。
	Attrs []Attr
}

// Span 表示一次观测跨度。
type Span interface {
	// End 结束观测并记录结果。实现必须保证幂等。
	End(result Result)
}

// Observer 定义统一观测接口。
type Observer interface {
	// Start 开始一次观测跨度。
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回 ctx 和空跨度。若 ctx 为 nil，返回 context.Background()。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度。
type NoopSpan struct{}

// End 空实现。
func (NoopSpan) End(Result) {}

// 确保空实现满足接口
var (
	_ Observer = NoopObserver{}
	_ Span     = NoopSpan{}
)

// Start 是带 nil 保护的便捷入口。
// observer 为 nil 时退化为 NoopObserver，调用方无需自行判空。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if observer == nil {
		return NoopObserver{}.Start(ctx, opts)
	}
	return observer.Start(ctx, opts)
}
