package socket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/transport/memnet"
	"github.com/dep2p/go-dice/pkg/types"
)

func TestBootstrap_PublicPeerBecomesDirect(t *testing.T) {
	net := memnet.New()
	peers, addrs := bootstrapSet(t, net)
	p := publicSocket(t, net, "1.0.0.4:1000", withBootstrap(addrs))
	require.True(t, p.Node().IsDisabled())

	require.NoError(t, p.Bootstrap(context.Background()))

	n := p.Node()
	assert.False(t, n.IsDisabled())
	assert.Equal(t, types.NATTypeDirect, n.NATType())
	d, ok := n.DirectAddress(types.IPv4)
	require.True(t, ok)
	assert.Equal(t, mustAddr(t, "1.0.0.4:1000"), d)
	for i, peer := range peers {
		assert.True(t, inTable(peer, n), "bootstrap peer %d should hold the new record", i)
	}
}

func TestBootstrap_PortRestrictedPeerIsRelayed(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	h, err := net.AddPortRestricted("2.0.0.1")
	require.NoError(t, err)
	r := newSocket(t, h, withBootstrap(addrs))

	require.NoError(t, r.Bootstrap(context.Background()))

	n := r.Node()
	assert.Equal(t, types.NATTypeRelayed, n.NATType())
	e, ok := n.Endpoints()[0].(endpoint.Relayed)
	require.True(t, ok)
	mapped, _ := h.PublicAddr()
	assert.Equal(t, mapped, e.Addr)
	assert.Equal(t, addrs[0], e.Relay)
}

func TestBootstrap_SymmetricPeer(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	h, err := net.AddSymmetric("3.0.0.1")
	require.NoError(t, err)
	s := newSocket(t, h, withBootstrap(addrs))

	require.NoError(t, s.Bootstrap(context.Background()))

	n := s.Node()
	assert.Equal(t, types.NATTypeSymmetric, n.NATType())
	e, ok := n.Endpoints()[0].(endpoint.Symmetric)
	require.True(t, ok)
	assert.Equal(t, addrs[0], e.Relay)
}

func TestBootstrap_NoPeers(t *testing.T) {
	s := publicSocket(t, memnet.New(), "1.0.0.1:1000", nil)
	err := s.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrNoPeers)
	assert.True(t, s.Node().IsDisabled())
}

func TestOpen_AutoBootstrapFailureEmitsError(t *testing.T) {
	h, err := memnet.New().AddPublic("1.0.0.1:1000")
	require.NoError(t, err)
	cfg := testConfig()
	cfg.AutoBootstrap = true
	s, err := New(newKeys(t), h, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	sub, err := s.Bus().Subscribe(new(eventbus.EvtError))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, s.Open(context.Background()))
	select {
	case e := <-sub.Out():
		evt := e.(eventbus.EvtError)
		assert.Equal(t, "bootstrap", evt.Op)
		assert.ErrorIs(t, evt.Err, ErrNoPeers)
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
	}
}

func TestSend_SymmetricToDirect(t *testing.T) {
	net := memnet.New()
	peers, addrs := bootstrapSet(t, net)
	h, err := net.AddSymmetric("3.0.0.1")
	require.NoError(t, err)
	s := newSocket(t, h, withBootstrap(addrs))
	ctx := context.Background()
	require.NoError(t, s.Bootstrap(ctx))

	sub := subscribeData(t, peers[1])
	payload := []byte("hello from behind a symmetric nat")
	require.NoError(t, s.Send(ctx, peers[1].DiceAddress(), payload))

	evt := recvData(t, sub)
	assert.Equal(t, payload, evt.Payload)
	assert.Equal(t, s.DiceAddress(), evt.From.DiceAddress())
	assert.False(t, evt.Relayed)
}

func TestSend_PunchToRelayed(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	h, err := net.AddPortRestricted("2.0.0.1")
	require.NoError(t, err)
	r := newSocket(t, h, withBootstrap(addrs))
	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	x := publicSocket(t, net, "1.0.0.5:1000", withBootstrap(addrs))
	require.NoError(t, x.Bootstrap(ctx))

	sub := subscribeData(t, r)
	payload := []byte("through the punched hole")
	require.NoError(t, x.Send(ctx, r.DiceAddress(), payload))

	evt := recvData(t, sub)
	assert.Equal(t, payload, evt.Payload)
	assert.False(t, evt.Relayed)
	assert.Equal(t, 1, x.punches.Len())
}

func TestSend_RevealToSymmetric(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	h, err := net.AddSymmetric("3.0.0.1")
	require.NoError(t, err)
	s := newSocket(t, h, withBootstrap(addrs))
	ctx := context.Background()
	require.NoError(t, s.Bootstrap(ctx))

	x := publicSocket(t, net, "1.0.0.5:1000", withBootstrap(addrs))
	require.NoError(t, x.Bootstrap(ctx))
	x.contacts.Purge()

	sub := subscribeData(t, s)
	payload := []byte("to a revealed address")
	require.NoError(t, x.Send(ctx, s.DiceAddress(), payload))

	evt := recvData(t, sub)
	assert.Equal(t, payload, evt.Payload)
	_, ok := x.reveals.Get(revealKey(s.DiceAddress(), types.IPv4))
	assert.True(t, ok)
}

func TestSend_RelayFromSymmetricToRelayed(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	ctx := context.Background()

	hr, err := net.AddPortRestricted("2.0.0.1")
	require.NoError(t, err)
	r := newSocket(t, hr, withBootstrap(addrs))
	require.NoError(t, r.Bootstrap(ctx))

	hs, err := net.AddSymmetric("3.0.0.1")
	require.NoError(t, err)
	s := newSocket(t, hs, withBootstrap(addrs))
	require.NoError(t, s.Bootstrap(ctx))
	s.contacts.Purge()

	sub := subscribeData(t, r)
	payload := []byte("relayed through a direct peer")
	require.NoError(t, s.Send(ctx, r.DiceAddress(), payload))

	evt := recvData(t, sub)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, evt.Relayed)
	assert.Equal(t, s.DiceAddress(), evt.From.DiceAddress())
}

func TestSend_RelayLargestPayload(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	ctx := context.Background()

	hr, err := net.AddPortRestricted("2.0.0.1")
	require.NoError(t, err)
	r := newSocket(t, hr, withBootstrap(addrs))
	require.NoError(t, r.Bootstrap(ctx))

	hs, err := net.AddSymmetric("3.0.0.1")
	require.NoError(t, err)
	s := newSocket(t, hs, withBootstrap(addrs))
	require.NoError(t, s.Bootstrap(ctx))
	s.contacts.Purge()

	sub := subscribeData(t, r)
	payload := make([]byte, message.MaxPayload)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, s.Send(ctx, r.DiceAddress(), payload))

	evt := recvData(t, sub)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, evt.Relayed)
}

func TestSend_PayloadTooLarge(t *testing.T) {
	net := memnet.New()
	peers, _ := bootstrapSet(t, net)
	err := peers[0].SendNode(context.Background(), peers[1].Node(), make([]byte, 61*1024))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestLookup_FindsNodeThroughOverlay(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	ctx := context.Background()
	x := publicSocket(t, net, "1.0.0.5:1000", withBootstrap(addrs))
	require.NoError(t, x.Bootstrap(ctx))
	y := publicSocket(t, net, "1.0.0.6:1000", withBootstrap(addrs))
	require.NoError(t, y.Bootstrap(ctx))

	x.Table().Remove(y.DiceAddress())
	n, err := x.Lookup(ctx, y.DiceAddress())
	require.NoError(t, err)
	assert.Equal(t, y.DiceAddress(), n.DiceAddress())
	assert.True(t, record.Equal(y.Node(), n))

	_, err = x.Lookup(ctx, types.DiceAddress{0xde, 0xad})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestFindClosest_OrdersByDistance(t *testing.T) {
	net := memnet.New()
	peers, addrs := bootstrapSet(t, net)
	x := publicSocket(t, net, "1.0.0.5:1000", withBootstrap(addrs))
	require.NoError(t, x.Bootstrap(context.Background()))

	target := peers[2].DiceAddress()
	nodes, err := x.FindClosest(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, nodes, len(peers))
	assert.Equal(t, target, nodes[0].DiceAddress())
}

func TestHealthcheckOverlay_EvictsUnresponsive(t *testing.T) {
	net := memnet.New()
	peers, _ := bootstrapSet(t, net)
	dead := peers[2].Node()
	require.NoError(t, peers[2].Close())
	peers[0].contacts.Purge()

	require.NoError(t, peers[0].HealthcheckOverlay(context.Background()))

	assert.False(t, inTable(peers[0], dead))
	assert.True(t, inTable(peers[0], peers[1].Node()))
}

func TestHealthcheckNode_RebootstrapsOnMismatch(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	ctx := context.Background()
	x := publicSocket(t, net, "1.0.0.5:1000", withBootstrap(addrs))
	require.NoError(t, x.Bootstrap(ctx))

	stale := []endpoint.Endpoint{endpoint.Direct{Addr: mustAddr(t, "9.9.9.9:9")}}
	_, err := x.updateLocal(record.Patch{Endpoints: stale})
	require.NoError(t, err)
	// 发送记录过期后 NAT1 探测才有未联系过的节点可用
	x.sent.Purge()

	require.NoError(t, x.HealthcheckNode(ctx))

	d, ok := x.Node().DirectAddress(types.IPv4)
	require.True(t, ok)
	assert.Equal(t, mustAddr(t, "1.0.0.5:1000"), d)
}

func TestHealthcheckNode_Stable(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	ctx := context.Background()
	x := publicSocket(t, net, "1.0.0.5:1000", withBootstrap(addrs))
	require.NoError(t, x.Bootstrap(ctx))
	before := x.Node()

	require.NoError(t, x.HealthcheckNode(ctx))
	assert.Same(t, before, x.Node())
}

func TestHealthcheckOverlay_SkipsOverlappingRun(t *testing.T) {
	net := memnet.New()
	peers, addrs := bootstrapSet(t, net)
	ctx := context.Background()

	// 不应答的节点：对它的 ping 一直等到超时
	d := publicSocket(t, net, "1.0.0.7:1000", withBootstrap(addrs))
	require.NoError(t, d.Bootstrap(ctx))
	silent := d.Node()
	require.NoError(t, d.Close())
	for _, p := range peers {
		p.Table().Remove(silent.DiceAddress())
	}

	x := publicSocket(t, net, "1.0.0.5:1000", func(c *Config) {
		c.ForceNATType = types.NATTypeDirect
		c.PublicAddrs = []types.NetworkAddress{mustAddr(t, "1.0.0.5:1000")}
		c.BootstrapPeers = addrs
		c.RequestTimeout = time.Second
	})
	require.NoError(t, x.Bootstrap(ctx))
	for _, p := range peers {
		x.Table().Remove(p.DiceAddress())
	}
	x.ingest(silent)
	require.Equal(t, 1, x.Table().Size())
	x.contacts.Purge()

	first := make(chan error, 1)
	go func() { first <- x.HealthcheckOverlay(ctx) }()
	require.Eventually(t, func() bool { return x.PendingCount() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	require.NoError(t, x.HealthcheckOverlay(ctx))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, x.PendingCount(), "overlapping run must not send pings")

	// 超时后逐出，表空触发重新引导
	require.NoError(t, <-first)
	assert.False(t, inTable(x, silent))
	assert.True(t, inTable(x, peers[0].Node()))
	assert.False(t, x.overlayCheck.Load())
}

func TestHealthcheckNode_SkipsOverlappingRun(t *testing.T) {
	net := memnet.New()
	peers, _ := bootstrapSet(t, net)
	x := peers[0]

	x.nodeCheck.Store(true)
	start := time.Now()
	require.NoError(t, x.HealthcheckNode(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Zero(t, x.PendingCount())
	x.nodeCheck.Store(false)
}

func TestLookup_FirstExactHitAbandonsOtherChains(t *testing.T) {
	net := memnet.New()
	_, addrs := bootstrapSet(t, net)
	ctx := context.Background()

	var silent []*record.Node
	for _, a := range []string{"1.0.0.7:1000", "1.0.0.8:1000"} {
		d := publicSocket(t, net, a, withBootstrap(addrs))
		require.NoError(t, d.Bootstrap(ctx))
		silent = append(silent, d.Node())
		require.NoError(t, d.Close())
	}

	y := publicSocket(t, net, "1.0.0.6:1000", withBootstrap(addrs))
	require.NoError(t, y.Bootstrap(ctx))

	x := publicSocket(t, net, "1.0.0.5:1000", func(c *Config) {
		c.ForceNATType = types.NATTypeDirect
		c.PublicAddrs = []types.NetworkAddress{mustAddr(t, "1.0.0.5:1000")}
		c.RequestTimeout = 3 * time.Second
		c.LookupConcurrency = 5
	})
	require.NoError(t, x.Bootstrap(ctx))
	for _, n := range silent {
		x.ingest(n)
	}
	for _, a := range addrs {
		n, err := x.PingAddress(ctx, a)
		require.NoError(t, err)
		x.ingest(n)
	}
	require.False(t, x.Table().Has(y.DiceAddress()))
	x.contacts.Purge()

	start := time.Now()
	n, err := x.Lookup(ctx, y.DiceAddress())
	require.NoError(t, err)
	assert.Equal(t, y.DiceAddress(), n.DiceAddress())
	// 查询静默节点的链被取消，而不是等到请求超时
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, x.PendingCount())
}
