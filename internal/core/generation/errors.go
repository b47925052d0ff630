package generation

import "errors"

var (
	// ErrLocked 另一个进程正在使用该身份
	ErrLocked = errors.New("generation: identity in use by another process")

	// ErrCorrupt 计数文件内容无法解析
	ErrCorrupt = errors.New("generation: corrupt counter file")

	// ErrClosed 计数器已关闭
	ErrClosed = errors.New("generation: closed")
)
