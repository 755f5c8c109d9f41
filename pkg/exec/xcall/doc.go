// Package xcall 提供带认证恢复能力的网络请求执行器。
//
// # 设计理念
//
// Executor 把每个远程调用都套进同一套控制流里：
//   - 连接门控：无连接时快速失败并登记恢复监听，从不阻塞等待
//   - 有界重试：按状态码分类 + 有状态预算（xretry.Policy），带退避
//   - 会话恢复：401 触发重新注册；403 标记账号挂起（终态）
//   - 错误归一：所有失败都带原始传输错误作为 cause
//
// 调用方以值级闭包组（Call）提供具体端点实现，不使用继承扩展。
// 协作方（会话控制器、连接观察器）以接口注入，便于测试替换，
// 不依赖任何进程级单例。
//
// # 两种调用模式
//
//   - Perform：阻塞模式，重试退避在调用方 goroutine 上等待
//   - PerformAsync：回调模式，每个逻辑调用恰好触发一次终态回调
//     （Success / Error / UserSuspended 三选一）；内部的重试与 401
//     重放对调用方不可见
//
// 异步路径的重试退避通过定时器重新发起，不会阻塞传输回调所在的
// goroutine。
//
// # 401 行为的不对称性
//
// 同步模式下 401 只触发重新注册（带外进行）并立即报错，不重放原调用；
// 异步模式下重新注册成功后会从连接门控开始整体重放一次。
// 这是对上游 SDK 既有行为的刻意保留，见 SessionError 的文档。
//
// # 生命周期
//
// 一个 Executor 实例对应一个逻辑调用：重试预算在实例内跨尝试共享
// （包括异步 401 重放链路），新的逻辑调用应创建新的实例。
//
// # 使用方式
//
//	exec, err := xcall.New(xcall.Call[User]{
//	    Sync: func(ctx context.Context, apiKey string) (User, error) {
//	        return fetchUser(ctx, apiKey)
//	    },
//	    OnConnectionLost: func() { monitor.NotifyRestored(resume) },
//	}, sessionCtrl,
//	    xcall.WithConnectivity[User](monitor),
//	    xcall.WithPolicy[User](xretry.NewStatusPolicy()),
//	)
//	user, err := exec.Perform(ctx, apiKey)
package xcall
