package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/pkg/types"
)

func addr(t *testing.T, s string) types.NetworkAddress {
	t.Helper()
	a, err := types.ParseNetworkAddress(s)
	require.NoError(t, err)
	return a
}

func TestEndpoint_EncodeDecode(t *testing.T) {
	cases := []Endpoint{
		Direct{Addr: addr(t, "203.0.113.1:4000")},
		Direct{Addr: addr(t, "[2001:db8::1]:4000")},
		Relayed{Addr: addr(t, "198.51.100.2:5000"), Relay: addr(t, "203.0.113.1:4000")},
		Symmetric{Addr: addr(t, "198.51.100.3:6000"), Relay: addr(t, "203.0.113.1:4000")},
	}

	for _, e := range cases {
		t.Run(e.String(), func(t *testing.T) {
			r := codec.NewReader(Bytes(e))
			got := Decode(r)
			require.NoError(t, r.Finish())
			assert.Equal(t, e, got)
			assert.Equal(t, Checksum(e), Checksum(got))
			assert.True(t, Equal(e, got))
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	// 中继地址族与端点不同
	w := codec.NewWriter(64)
	w.Byte(byte(types.NATTypeRelayed))
	EncodeAddress(w, addr(t, "198.51.100.2:5000"))
	EncodeAddress(w, addr(t, "[2001:db8::1]:4000"))
	r := codec.NewReader(w.Bytes())
	assert.Nil(t, Decode(r))
	assert.ErrorIs(t, r.Err(), ErrRelayFamily)

	// 未知 NAT 类型
	w = codec.NewWriter(16)
	w.Byte(2)
	EncodeAddress(w, addr(t, "198.51.100.2:5000"))
	r = codec.NewReader(w.Bytes())
	assert.Nil(t, Decode(r))
	assert.ErrorIs(t, r.Err(), ErrUnknownNATType)

	// 端口为 0
	r = codec.NewReader([]byte{1, 4, 1, 2, 3, 4, 0, 0})
	assert.Nil(t, Decode(r))
	assert.ErrorIs(t, r.Err(), ErrInvalidAddress)
}

func TestEqual(t *testing.T) {
	a := Direct{Addr: addr(t, "203.0.113.1:4000")}
	b := Direct{Addr: addr(t, "203.0.113.1:4001")}
	relayed := Relayed{Addr: addr(t, "203.0.113.1:4000"), Relay: addr(t, "203.0.113.9:1")}

	assert.True(t, Equal(a, Direct{Addr: addr(t, "203.0.113.1:4000")}))
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, relayed))
	assert.False(t, Equal(a, nil))
}

func TestScore_Order(t *testing.T) {
	relay4 := addr(t, "203.0.113.9:1")
	relay6 := addr(t, "[2001:db8::9]:1")
	ordered := []Endpoint{
		Direct{Addr: addr(t, "[2001:db8::1]:1")},
		Direct{Addr: addr(t, "203.0.113.1:1")},
		Relayed{Addr: addr(t, "[2001:db8::2]:1"), Relay: relay6},
		Relayed{Addr: addr(t, "198.51.100.2:1"), Relay: relay4},
		Symmetric{Addr: addr(t, "[2001:db8::3]:1"), Relay: relay6},
		Symmetric{Addr: addr(t, "198.51.100.3:1"), Relay: relay4},
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, Score(ordered[i-1]), Score(ordered[i]), "%s vs %s", ordered[i-1], ordered[i])
	}
	assert.Equal(t, Score(ordered[0]), BestScore(ordered))
	assert.Zero(t, BestScore(nil))
}
