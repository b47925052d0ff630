package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/multiformats/go-varint"
)

// DefaultMaxBlob 长度前缀字段的默认上限（一个 UDP 数据报的大小）
const DefaultMaxBlob = 64 * 1024

// Reader 顺序解码器
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader 创建 Reader
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err 第一次发生的错误
func (r *Reader) Err() error {
	return r.err
}

// Remaining 未读字节数
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Offset 已读字节数
func (r *Reader) Offset() int {
	return r.off
}

// Finish 要求没有剩余字节，返回最终错误
func (r *Reader) Finish() error {
	if r.err == nil && r.Remaining() != 0 {
		r.err = fmt.Errorf("%w: %d", ErrTrailingBytes, r.Remaining())
	}
	return r.err
}

// Fail 记录一个解码错误（仅保留第一个）
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, r.Remaining())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Byte 读取单字节
func (r *Reader) Byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool 读取 0/1，其他取值视为错误
func (r *Reader) Bool() bool {
	switch r.Byte() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.Fail(fmt.Errorf("%w: bool", ErrInvalidValue))
		return false
	}
}

// Uvarint 读取无符号变长整数
func (r *Reader) Uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.FromUvarint(r.buf[r.off:])
	if err != nil {
		r.err = fmt.Errorf("%w: uvarint: %v", ErrInvalidValue, err)
		return 0
	}
	r.off += n
	return v
}

// Uint16 大端读取 2 字节
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// Fixed 读取 n 字节定宽块到 dst
func (r *Reader) Fixed(dst []byte) {
	b := r.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

// Blob 读取长度前缀字节块（返回副本）
func (r *Reader) Blob(limit int) []byte {
	n := r.Uvarint()
	if r.err != nil {
		return nil
	}
	if n > uint64(limit) {
		r.err = fmt.Errorf("%w: %d > %d", ErrTooLarge, n, limit)
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// String 读取长度前缀字符串
func (r *Reader) String(limit int) string {
	return string(r.Blob(limit))
}

// Count 读取一个元素个数，超过 limit 视为错误
func (r *Reader) Count(limit int) int {
	n := r.Uvarint()
	if r.err != nil {
		return 0
	}
	if n > uint64(limit) {
		r.err = fmt.Errorf("%w: count %d > %d", ErrTooLarge, n, limit)
		return 0
	}
	return int(n)
}
