package xconn

import "errors"

var (
	// ErrMissingProbe 表示既未配置探测函数也未配置探测目标。
	ErrMissingProbe = errors.New("xconn: missing probe function or target")

	// ErrAlreadyStarted 表示 Monitor 已经启动。
	ErrAlreadyStarted = errors.New("xconn: monitor already started")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xconn: context cannot be nil")
)
