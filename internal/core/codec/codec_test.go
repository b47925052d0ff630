package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.Byte(0xab)
	w.Bool(true)
	w.Uvarint(0)
	w.Uvarint(300)
	w.Uvarint(math.MaxInt64)
	w.Uint16(8080)
	w.Fixed([]byte{1, 2, 3, 4})
	w.Blob([]byte("payload"))
	w.String("dice")

	r := NewReader(w.Bytes())
	assert.Equal(t, byte(0xab), r.Byte())
	assert.True(t, r.Bool())
	assert.Equal(t, uint64(0), r.Uvarint())
	assert.Equal(t, uint64(300), r.Uvarint())
	assert.Equal(t, uint64(math.MaxInt64), r.Uvarint())
	assert.Equal(t, uint16(8080), r.Uint16())
	fixed := make([]byte, 4)
	r.Fixed(fixed)
	assert.Equal(t, []byte{1, 2, 3, 4}, fixed)
	assert.Equal(t, []byte("payload"), r.Blob(DefaultMaxBlob))
	assert.Equal(t, "dice", r.String(16))
	require.NoError(t, r.Finish())
}

func TestReader_StickyShortBuffer(t *testing.T) {
	r := NewReader([]byte{0x01})
	dst := make([]byte, 4)
	r.Fixed(dst)
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)

	// 错误之后的读取都返回零值
	assert.Equal(t, byte(0), r.Byte())
	assert.Equal(t, uint64(0), r.Uvarint())
	assert.ErrorIs(t, r.Finish(), ErrShortBuffer)
}

func TestReader_Limits(t *testing.T) {
	w := NewWriter(8)
	w.Blob(make([]byte, 10))
	r := NewReader(w.Bytes())
	assert.Nil(t, r.Blob(5))
	assert.ErrorIs(t, r.Err(), ErrTooLarge)

	w = NewWriter(8)
	w.Uvarint(1000)
	r = NewReader(w.Bytes())
	assert.Zero(t, r.Count(10))
	assert.ErrorIs(t, r.Err(), ErrTooLarge)
}

func TestReader_InvalidBoolAndTrailing(t *testing.T) {
	r := NewReader([]byte{2})
	r.Bool()
	assert.ErrorIs(t, r.Err(), ErrInvalidValue)

	r = NewReader([]byte{1, 0})
	r.Byte()
	assert.ErrorIs(t, r.Finish(), ErrTrailingBytes)
}

func TestReader_NonMinimalUvarint(t *testing.T) {
	// 0x80 0x00 是 0 的非最短编码
	r := NewReader([]byte{0x80, 0x00})
	r.Uvarint()
	assert.ErrorIs(t, r.Err(), ErrInvalidValue)
}
