package socket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/internal/core/transport/memnet"
	"github.com/dep2p/go-dice/pkg/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoBootstrap = false
	cfg.RequestTimeout = 300 * time.Millisecond
	cfg.NodeHealthcheckInterval = 0
	cfg.OverlayHealthcheckInterval = 0
	return cfg
}

func mustAddr(t *testing.T, s string) types.NetworkAddress {
	t.Helper()
	a, err := types.ParseNetworkAddress(s)
	require.NoError(t, err)
	return a
}

// newSocket 打开一个使用 tr 的引擎，测试结束时关闭
func newSocket(t *testing.T, tr transport.Transport, mutate func(*Config), opts ...Option) *Socket {
	t.Helper()
	k, err := keys.Generate()
	require.NoError(t, err)
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(k, tr, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func publicSocket(t *testing.T, net *memnet.Network, addr string, mutate func(*Config), opts ...Option) *Socket {
	t.Helper()
	h, err := net.AddPublic(addr)
	require.NoError(t, err)
	return newSocket(t, h, mutate, opts...)
}

// bootstrapSet 三个强制为 Direct 的引导节点，彼此互为引导节点
func bootstrapSet(t *testing.T, net *memnet.Network) ([]*Socket, []types.NetworkAddress) {
	t.Helper()
	var addrs []types.NetworkAddress
	for i := 1; i <= 3; i++ {
		addrs = append(addrs, mustAddr(t, fmt.Sprintf("1.0.0.%d:1000", i)))
	}
	var peers []*Socket
	for i, a := range addrs {
		others := make([]types.NetworkAddress, 0, len(addrs)-1)
		for j, o := range addrs {
			if j != i {
				others = append(others, o)
			}
		}
		peers = append(peers, publicSocket(t, net, a.String(), func(c *Config) {
			c.ForceNATType = types.NATTypeDirect
			c.PublicAddrs = []types.NetworkAddress{a}
			c.BootstrapPeers = others
		}))
	}
	ctx := context.Background()
	for _, p := range peers {
		require.NoError(t, p.Bootstrap(ctx))
	}
	return peers, addrs
}

func withBootstrap(addrs []types.NetworkAddress) func(*Config) {
	return func(c *Config) { c.BootstrapPeers = addrs }
}

func subscribeData(t *testing.T, s *Socket) *eventbus.Subscription {
	t.Helper()
	sub, err := s.Bus().Subscribe(new(eventbus.EvtData))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func recvData(t *testing.T, sub *eventbus.Subscription) eventbus.EvtData {
	t.Helper()
	select {
	case e := <-sub.Out():
		return e.(eventbus.EvtData)
	case <-time.After(2 * time.Second):
		t.Fatal("no data event")
		return eventbus.EvtData{}
	}
}

func inTable(s *Socket, n *record.Node) bool {
	return s.Table().Has(n.DiceAddress())
}

// recorder 记录指标调用
type recorder struct {
	mu      sync.Mutex
	drops   map[string]int
	relayed int
	evicted int
}

func newRecorder() *recorder {
	return &recorder{drops: make(map[string]int)}
}

func (r *recorder) MessageReceived(string, int) {}
func (r *recorder) MessageSent(string, int)     {}
func (r *recorder) SetPending(int)              {}
func (r *recorder) SetTableSize(int)            {}
func (r *recorder) Healthcheck(string, bool)    {}

func (r *recorder) Dropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops[reason]++
}

func (r *recorder) Evicted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted++
}

func (r *recorder) Relayed(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.relayed++
	}
}

func (r *recorder) dropped(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drops[reason]
}

func (r *recorder) relays() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relayed
}

func newKeys(t *testing.T) *keys.Keys {
	t.Helper()
	k, err := keys.Generate()
	require.NoError(t, err)
	return k
}
