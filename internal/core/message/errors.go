package message

import "errors"

var (
	// ErrBadMagic 前缀不是本协议的魔数
	ErrBadMagic = errors.New("message: bad magic")

	// ErrUnsupportedVersion 协议版本不支持
	ErrUnsupportedVersion = errors.New("message: unsupported version")

	// ErrUnknownTag 未知消息标签
	ErrUnknownTag = errors.New("message: unknown tag")

	// ErrMalformed 编码无法解析
	ErrMalformed = errors.New("message: malformed")

	// ErrInvalidSignature 信封签名无效
	ErrInvalidSignature = errors.New("message: invalid signature")

	// ErrTooLarge 编码超过单个数据报上限
	ErrTooLarge = errors.New("message: too large")
)
