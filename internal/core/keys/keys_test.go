package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DerivesIdentity(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	assert.Len(t, k.PrivateKey(), PrivateKeySize)
	assert.Contains(t, []byte{0x02, 0x03}, k.PublicKey()[0], "压缩公钥前缀")
	assert.Equal(t, k.PublicKey().DiceAddress(), k.DiceAddress())

	again, err := FromPrivateKey(k.PrivateKey())
	require.NoError(t, err)
	assert.Equal(t, k.PublicKey(), again.PublicKey())
	assert.Equal(t, k.DiceAddress(), again.DiceAddress())
}

func TestFromPrivateKey_Invalid(t *testing.T) {
	_, err := FromPrivateKey(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = FromPrivateKey(make([]byte, 32))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestSignRecoverable_RecoversPublicKey(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		h := Sum([]byte{byte(i)}, []byte("record"))
		sig := k.SignRecoverable(h)
		assert.LessOrEqual(t, sig.RecoveryBit, uint8(3))

		pub, err := RecoverPublicKey(sig, h)
		require.NoError(t, err)
		assert.Equal(t, k.PublicKey(), pub)
		assert.True(t, VerifyRecoverable(sig, h, k.PublicKey()))
	}
}

func TestVerify_ByteFlips(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	msg := []byte("ping 0123456789abcdef")
	sig := k.Sign(Sum(msg))
	require.True(t, Verify(sig, Sum(msg), k.PublicKey()))

	// 消息任意一个字节被改动
	for i := range msg {
		flipped := bytes.Clone(msg)
		flipped[i] ^= 0x01
		assert.False(t, Verify(sig, Sum(flipped), k.PublicKey()), "msg byte %d", i)
	}

	// 签名任意一个字节被改动
	for i := range sig {
		flipped := sig
		flipped[i] ^= 0x01
		assert.False(t, Verify(flipped, Sum(msg), k.PublicKey()), "sig byte %d", i)
	}
}

func TestVerifyRecoverable_ByteFlips(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	h := Sum([]byte("node record body"))
	sig := k.SignRecoverable(h)

	for i := range sig.Signature {
		flipped := sig
		flipped.Signature[i] ^= 0x80
		assert.False(t, VerifyRecoverable(flipped, h, k.PublicKey()), "sig byte %d", i)
	}
	for i := range h {
		flipped := h
		flipped[i] ^= 0x80
		assert.False(t, VerifyRecoverable(sig, flipped, k.PublicKey()), "hash byte %d", i)
	}

	sig.RecoveryBit = 9
	_, err = RecoverPublicKey(sig, h)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_WrongKey(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	h := Sum([]byte("x"))
	assert.False(t, Verify(a.Sign(h), h, b.PublicKey()))
	assert.False(t, VerifyRecoverable(a.SignRecoverable(h), h, b.PublicKey()))
}

func TestSum_PartsEqualConcatenation(t *testing.T) {
	assert.Equal(t, Sum([]byte("abcdef")), Sum([]byte("ab"), []byte("cd"), []byte("ef")))
	assert.NotEqual(t, Sum([]byte("a")), Sum([]byte("b")))
}
