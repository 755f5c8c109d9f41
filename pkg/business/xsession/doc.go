// Package xsession 提供会话注册与恢复控制器。
//
// # 设计理念
//
// 执行器（pkg/exec/xcall）在 401 分支需要"用既有用户信息重新注册会话"，
// 在 403 分支需要置位进程级挂起标记。Controller 是这两个职责的默认实现：
// 注册请求经由 xhttpc 发出，会话凭据缓存在带 TTL 的本地 LRU 中。
//
// # 核心功能
//
//   - Register / ReRegister：同步注册，瞬时失败内部有界重试
//   - ReRegisterAsync：异步重新注册，终态经 done 回调交付恰好一次
//   - 并发去重：同一时刻只有一个重新注册在途（singleflight），
//     并发触发方共享同一结果
//   - 挂起标记：SetSuspended / Suspended，挂起后拒绝再注册
//
// # 使用示例
//
//	controller := xsession.NewController(xsession.Config{
//		HTTP:        client,
//		Credentials: xsession.Credentials{UserID: "u-1", APIKey: "k-1"},
//	})
//
//	executor, err := xcall.New(call, controller)
package xsession
