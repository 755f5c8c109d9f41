package xconn

// Watcher 定义连接可用性观察接口。
type Watcher interface {
	// Available 返回当前是否有可用连接。
	Available() bool

	// NotifyRestored 注册一次性的连接恢复回调。
	// 回调在下一次 下线→上线 转换时触发一次，之后即被移除。
	// fn 为 nil 时静默忽略。
	NotifyRestored(fn func())
}

// AlwaysAvailable 是恒为可用的 Watcher。
// 适用于不需要连接门控的场景（如测试或可靠内网）。
type AlwaysAvailable struct{}

// Available 恒返回 true。
func (AlwaysAvailable) Available() bool { return true }

// NotifyRestored 空实现：连接从不掉线，回调永远不会触发。
func (AlwaysAvailable) NotifyRestored(func()) {}

// 确保实现了接口
var _ Watcher = AlwaysAvailable{}
