package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/pkg/types"
)

func listenLoopback(t *testing.T) *UDP {
	t.Helper()
	cfg := DefaultUDPConfig()
	cfg.ListenAddrs = []string{"127.0.0.1:0"}
	u, err := ListenUDP(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func TestUDP_SendReceive(t *testing.T) {
	a := listenLoopback(t)
	b := listenLoopback(t)

	require.Len(t, b.LocalAddrs(), 1)
	to := b.LocalAddrs()[0]
	require.NoError(t, a.Send(context.Background(), []byte("hello"), to))

	select {
	case p := <-b.Packets():
		assert.Equal(t, []byte("hello"), p.Data)
		assert.Equal(t, a.LocalAddrs()[0], p.From)
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}
}

func TestUDP_SendErrors(t *testing.T) {
	a := listenLoopback(t)

	v6, err := types.ParseNetworkAddress("[::1]:9")
	require.NoError(t, err)
	assert.ErrorIs(t, a.Send(context.Background(), []byte("x"), v6), ErrNoListener)
	assert.ErrorIs(t, a.Send(context.Background(), []byte("x"), types.NetworkAddress{}), ErrInvalidAddress)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Send(ctx, []byte("x"), a.LocalAddrs()[0]), context.Canceled)
}

func TestUDP_CloseClosesPackets(t *testing.T) {
	cfg := DefaultUDPConfig()
	cfg.ListenAddrs = []string{"127.0.0.1:0"}
	u, err := ListenUDP(cfg)
	require.NoError(t, err)

	require.NoError(t, u.Close())
	require.NoError(t, u.Close())

	select {
	case _, ok := <-u.Packets():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("packets channel not closed")
	}
	assert.ErrorIs(t, u.Send(context.Background(), []byte("x"), u.LocalAddrs()[0]), ErrClosed)
}

func TestListenUDP_Errors(t *testing.T) {
	_, err := ListenUDP(UDPConfig{})
	assert.ErrorIs(t, err, ErrNoListenAddrs)

	_, err = ListenUDP(UDPConfig{ListenAddrs: []string{"127.0.0.1:0", "127.0.0.2:0"}})
	assert.Error(t, err)
}
