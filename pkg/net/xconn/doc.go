// Package xconn 提供连接可用性观察能力。
//
// # 设计理念
//
// xcall.Executor 只依赖最小化的 Watcher 接口：
//   - Available：当前是否有可用连接
//   - NotifyRestored：注册一次性的恢复回调
//
// 执行器自身从不等待网络恢复（快速失败语义），恢复后的续作
// 由注册的回调完成。
//
// # Monitor
//
// Monitor 是 Watcher 的默认实现：按固定间隔执行探测（默认 TCP 拨测），
// 维护可用性标记，并在 下线→上线 转换时排空所有已注册的一次性回调。
//
//	monitor, _ := xconn.NewMonitor(
//	    xconn.WithTarget("api.example.com:443"),
//	    xconn.WithInterval(5*time.Second),
//	)
//	_ = monitor.Start(ctx)
//	defer monitor.Stop()
//
// # 回调约束
//
// 恢复回调在 Monitor 的探测 goroutine 之外异步执行（每个回调一个 goroutine），
// 回调内可以安全地重新发起网络调用或再次注册。
package xconn
