package dice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-dice/config"
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/generation"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/metrics"
	"github.com/dep2p/go-dice/internal/core/socket"
	"github.com/dep2p/go-dice/internal/core/transport/memnet"
)

// testConfig 临时身份、无自动引导、无健康检查
func testConfig(t *testing.T, public string, bootstrap ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Identity.Ephemeral = true
	cfg.Storage.DataDir = t.TempDir()
	cfg.NAT.ForceType = "direct"
	cfg.NAT.PublicAddrs = []string{public}
	cfg.NAT.PortMapping = false
	cfg.Overlay.AutoBootstrap = false
	cfg.Overlay.BootstrapPeers = bootstrap
	cfg.Healthcheck.NodeInterval = 0
	cfg.Healthcheck.OverlayInterval = 0
	cfg.Request.Timeout = config.Duration(300 * time.Millisecond)
	return cfg
}

func startPeer(t *testing.T, net *memnet.Network, cfg *config.Config, opts ...Option) *Peer {
	t.Helper()
	h, err := net.AddPublic(cfg.NAT.PublicAddrs[0])
	require.NoError(t, err)
	opts = append([]Option{WithConfig(cfg), WithTransport(h)}, opts...)
	p, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPeer_Lifecycle(t *testing.T) {
	net := memnet.New()
	h, err := net.AddPublic("1.0.0.1:1000")
	require.NoError(t, err)

	p, err := New(WithConfig(testConfig(t, "1.0.0.1:1000")), WithTransport(h))
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, p.Send(ctx, p.Address(), []byte("x")), ErrNotStarted)

	require.NoError(t, p.Start(ctx))
	assert.ErrorIs(t, p.Start(ctx), ErrAlreadyStarted)
	assert.Equal(t, socket.StateOpened, p.State())
	assert.Equal(t, p.Address(), p.Node().DiceAddress())
	assert.True(t, p.Node().IsDisabled())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, socket.StateClosed, p.State())
	assert.ErrorIs(t, p.Send(ctx, p.Address(), []byte("x")), ErrPeerClosed)
	assert.ErrorIs(t, p.Start(ctx), ErrPeerClosed)
}

func TestPeer_CloseWithoutStart(t *testing.T) {
	net := memnet.New()
	h, err := net.AddPublic("1.0.0.1:1000")
	require.NoError(t, err)

	p, err := New(WithConfig(testConfig(t, "1.0.0.1:1000")), WithTransport(h))
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, socket.StateClosed, p.State())
}

func TestPeer_BootstrapAndSend(t *testing.T) {
	net := memnet.New()
	a := startPeer(t, net, testConfig(t, "1.0.0.1:1000"))
	b := startPeer(t, net, testConfig(t, "1.0.0.2:1000", "1.0.0.1:1000"))

	ctx := context.Background()
	require.NoError(t, a.Bootstrap(ctx))
	require.NoError(t, b.Bootstrap(ctx))

	assert.Equal(t, NATTypeDirect, b.Node().NATType())
	assert.False(t, b.Node().IsDisabled())
	assert.True(t, a.Table().Has(b.Address()))
	assert.True(t, b.Table().Has(a.Address()))

	sub, err := a.SubscribeData()
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Send(ctx, a.Address(), []byte("hello")))
	select {
	case e := <-sub.Out():
		evt := e.(EvtData)
		assert.Equal(t, []byte("hello"), evt.Payload)
		assert.Equal(t, b.Address(), evt.From.DiceAddress())
		assert.False(t, evt.Relayed)
	case <-time.After(2 * time.Second):
		t.Fatal("no data event")
	}

	rtt, err := b.Ping(ctx, a.Node())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))

	n, err := b.PingAddress(ctx, a.Node().Endpoints()[0].Address())
	require.NoError(t, err)
	assert.Equal(t, a.Address(), n.DiceAddress())
}

func TestPeer_LookupUnknown(t *testing.T) {
	net := memnet.New()
	a := startPeer(t, net, testConfig(t, "1.0.0.1:1000"))
	b := startPeer(t, net, testConfig(t, "1.0.0.2:1000", "1.0.0.1:1000"))

	ctx := context.Background()
	require.NoError(t, a.Bootstrap(ctx))
	require.NoError(t, b.Bootstrap(ctx))

	k, err := keys.Generate()
	require.NoError(t, err)
	_, err = b.Lookup(ctx, k.DiceAddress())
	assert.ErrorIs(t, err, ErrNodeNotFound)

	closest, err := b.FindClosest(ctx, k.DiceAddress())
	require.NoError(t, err)
	require.Len(t, closest, 1)
	assert.Equal(t, a.Address(), closest[0].DiceAddress())
}

func TestPeer_PersistentIdentity(t *testing.T) {
	net := memnet.New()
	dir := t.TempDir()

	newCfg := func(public string) *config.Config {
		cfg := testConfig(t, public)
		cfg.Identity.Ephemeral = false
		cfg.Storage.DataDir = dir
		cfg.Metrics.Enabled = false
		return cfg
	}

	h1, err := net.AddPublic("1.0.0.1:1000")
	require.NoError(t, err)
	p1, err := Start(context.Background(), WithConfig(newCfg("1.0.0.1:1000")), WithTransport(h1))
	require.NoError(t, err)
	addr := p1.Address()
	assert.Equal(t, uint64(0), p1.Node().Generation())
	assert.Nil(t, p1.MetricsHandler())

	// 计数文件被锁定，同一身份不能同时运行两份
	h2, err := net.AddPublic("1.0.0.2:1000")
	require.NoError(t, err)
	_, err = New(WithConfig(newCfg("1.0.0.2:1000")), WithTransport(h2))
	assert.ErrorIs(t, err, generation.ErrLocked)

	require.NoError(t, p1.Close())

	h3, err := net.AddPublic("1.0.0.3:1000")
	require.NoError(t, err)
	p2, err := Start(context.Background(), WithConfig(newCfg("1.0.0.3:1000")), WithTransport(h3))
	require.NoError(t, err)
	defer p2.Close()
	assert.Equal(t, addr, p2.Address())
	assert.Equal(t, uint64(1), p2.Node().Generation())
}

func TestPeer_MetricsHandler(t *testing.T) {
	net := memnet.New()
	reg := prometheus.NewRegistry()
	p := startPeer(t, net, testConfig(t, "1.0.0.1:1000"), WithRegisterer(reg))
	require.NoError(t, p.Bootstrap(context.Background()))

	h := p.MetricsHandler()
	require.NotNil(t, h)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dice_healthchecks_total")
}

func TestPeer_WithKeys(t *testing.T) {
	net := memnet.New()
	k, err := keys.Generate()
	require.NoError(t, err)

	cfg := testConfig(t, "1.0.0.1:1000")
	cfg.Identity.Ephemeral = false
	p := startPeer(t, net, cfg, WithKeys(k))
	assert.Equal(t, k.DiceAddress(), p.Address())
}

func TestOptions_Invalid(t *testing.T) {
	_, err := New(WithBootstrapPeers("not-an-address"))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithPreset("server-farm"))
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Request.Timeout = 0
	_, err = New(WithConfig(cfg))
	assert.Error(t, err)
}

func TestOptions_ResolveConfig(t *testing.T) {
	o := newOptions()
	require.NoError(t, WithPreset("bootstrap")(o))
	require.NoError(t, WithBootstrapPeers()(o))
	cfg, err := o.resolveConfig()
	require.NoError(t, err)
	assert.Equal(t, "direct", cfg.NAT.ForceType)
	assert.Empty(t, cfg.Overlay.BootstrapPeers)

	sc, err := socketConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, NATTypeDirect, sc.ForceNATType)
	assert.False(t, sc.PortMapping)
	assert.Equal(t, time.Duration(0), sc.NodeHealthcheckInterval)
}

func TestSocketConfig_Filter(t *testing.T) {
	cfg := config.Default()
	cfg.NAT.Families = []string{"ipv4"}
	cfg.NAT.NATTypes = []string{"direct", "relayed"}
	cfg.Overlay.BootstrapPeers = []string{"203.0.113.7:4000"}

	sc, err := socketConfig(cfg)
	require.NoError(t, err)
	assert.Len(t, sc.Filter.Families, 1)
	assert.Equal(t, []NATType{NATTypeDirect, NATTypeRelayed}, sc.Filter.NATTypes)
	require.Len(t, sc.BootstrapPeers, 1)
	assert.Equal(t, "203.0.113.7:4000", sc.BootstrapPeers[0].String())
}

// provideSocket 把 Open / Close 挂在 fx 生命周期上
func TestProvideSocket_Lifecycle(t *testing.T) {
	net := memnet.New()
	h, err := net.AddPublic("1.0.0.1:1000")
	require.NoError(t, err)
	k, err := keys.Generate()
	require.NoError(t, err)

	sc := socket.DefaultConfig()
	sc.AutoBootstrap = false
	sc.NodeHealthcheckInterval = 0
	sc.OverlayHealthcheckInterval = 0

	lc := fxtest.NewLifecycle(t)
	s, err := provideSocket(newOptions())(socketParams{
		Lifecycle:  lc,
		Config:     sc,
		Keys:       k,
		Transport:  h,
		Generation: generation.NewMemory(7),
		Metrics:    metrics.Nop{},
		Bus:        eventbus.NewBus(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), s.Node().Generation())
	assert.Equal(t, socket.StateNew, s.State())

	lc.RequireStart()
	assert.Equal(t, socket.StateOpened, s.State())
	lc.RequireStop()
	assert.Equal(t, socket.StateClosed, s.State())
}
