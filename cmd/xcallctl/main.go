// xcallctl 是带认证恢复能力的 API 调用命令行工具。
//
// 用法:
//
//	xcallctl <命令> [命令参数]
//
// 命令:
//
//	call           执行一次带认证恢复的 API 调用
//	probe          探测服务连通性
//	help           显示帮助信息
//
// call 命令说明:
//
//	从配置文件装配完整执行栈（传输客户端、会话控制器、重试策略、
//	连接监控），先注册会话再发起调用。调用过程中 401 触发自动
//	重新注册，403 标记账号挂起，瞬时失败按配置的策略退避重试。
//
// 退出码:
//
//	0: 命令执行成功（probe 命令: 目标在线）
//	1: 命令执行失败或目标离线（probe 命令）
//	2: 参数错误（缺少配置文件、未知命令等）
//
// 示例:
//
//	xcallctl call -c conf.yaml --path /v1/profile
//	xcallctl call -c conf.yaml -X POST --path /v1/things -d '{"n":1}'
//	xcallctl call -c conf.yaml --path /v1/profile --async
//	xcallctl probe --target api.example.com:443
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:           "xcallctl",
		Usage:          "带认证恢复能力的 API 调用工具",
		Version:        fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"xcall Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(args []string) int {
	app := createApp()

	if err := app.Run(context.Background(), args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil {
				fmt.Fprintf(os.Stderr, "错误: %v\n", exitErr.err)
			}
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if _, ok := err.(cli.ExitCoder); ok {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
