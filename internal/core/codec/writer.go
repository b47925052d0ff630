package codec

import (
	"encoding/binary"

	"github.com/multiformats/go-varint"
)

// Writer 追加式编码器
type Writer struct {
	buf []byte
}

// NewWriter 创建 Writer，sizeHint 为预分配容量
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes 返回已编码的字节
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len 已编码长度
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte 写入单字节
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// Bool 写入 0/1
func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// Uvarint 写入无符号变长整数
func (w *Writer) Uvarint(v uint64) {
	w.buf = append(w.buf, varint.ToUvarint(v)...)
}

// Uint16 大端写入 2 字节
func (w *Writer) Uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// Fixed 原样写入定宽字节块
func (w *Writer) Fixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// Blob 写入长度前缀 + 字节
func (w *Writer) Blob(b []byte) {
	w.Uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// String 写入长度前缀 + UTF-8 字节
func (w *Writer) String(s string) {
	w.Uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}
