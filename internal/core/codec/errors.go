package codec

import "errors"

var (
	// ErrShortBuffer 剩余字节不足
	ErrShortBuffer = errors.New("codec: short buffer")

	// ErrTooLarge 长度前缀超出上限
	ErrTooLarge = errors.New("codec: length exceeds limit")

	// ErrTrailingBytes 解码完成后仍有多余字节
	ErrTrailingBytes = errors.New("codec: trailing bytes")

	// ErrInvalidValue 字段取值非法
	ErrInvalidValue = errors.New("codec: invalid value")
)
