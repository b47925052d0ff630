package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiceAddress_Base58RoundTrip(t *testing.T) {
	var a DiceAddress
	for i := range a {
		a[i] = byte(i * 7)
	}

	parsed, err := ParseDiceAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.Len(t, a.ShortString(), 8)
	assert.False(t, a.IsZero())
	assert.True(t, DiceAddress{}.IsZero())
}

func TestDiceAddressFromBytes_WrongLength(t *testing.T) {
	_, err := DiceAddressFromBytes(make([]byte, 19))
	assert.ErrorIs(t, err, ErrInvalidDiceAddress)

	_, err = ParseDiceAddress("0OIl")
	assert.ErrorIs(t, err, ErrInvalidDiceAddress)
}

func TestNewTransactionID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewTransactionID()
		_, dup := seen[id.Hex()]
		require.False(t, dup)
		seen[id.Hex()] = struct{}{}
		assert.Len(t, id.Hex(), 32)
	}
}

func TestNewTransactionID_AllBitsRandom(t *testing.T) {
	// UUID 会固定第 6 字节高 4 位与第 8 字节高 2 位
	versions := make(map[byte]struct{})
	variants := make(map[byte]struct{})
	for i := 0; i < 256; i++ {
		id := NewTransactionID()
		versions[id[6]>>4] = struct{}{}
		variants[id[8]>>6] = struct{}{}
	}
	assert.Greater(t, len(versions), 1)
	assert.Greater(t, len(variants), 1)
}
