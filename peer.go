package dice

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dice/config"
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/generation"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/metrics"
	"github.com/dep2p/go-dice/internal/core/socket"
	"github.com/dep2p/go-dice/internal/util/logger"
)

var log = logger.Logger("dice")

// DefaultStopTimeout Close 等待各组件停止的上限
const DefaultStopTimeout = 10 * time.Second

// Peer 覆盖网络中的一个节点
//
// 由 New 创建，Start 后开始收发数据报，Close 后不可再用。
type Peer struct {
	config *config.Config
	app    *fx.App

	socket     *socket.Socket
	bus        *eventbus.Bus
	keys       *keys.Keys
	generation generation.Counter
	gatherer   prometheus.Gatherer

	mu      sync.Mutex
	started bool
	closed  bool
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造
// ════════════════════════════════════════════════════════════════════════════

// New 创建节点但不启动
//
// 密钥、generation 文件与 UDP 端口在这里就已占用，失败时全部释放。
func New(opts ...Option) (*Peer, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.resolveConfig()
	if err != nil {
		return nil, err
	}

	peer := &Peer{config: cfg}
	peer.app, err = buildFxApp(cfg, o, peer)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return peer, nil
}

// Start 快捷启动函数
//
// 等价于 New() + Peer.Start()。
//
// 示例：
//
//	peer, err := dice.Start(ctx,
//	    dice.WithPreset("bootstrap"),
//	)
func Start(ctx context.Context, opts ...Option) (*Peer, error) {
	peer, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := peer.Start(ctx); err != nil {
		return nil, fmt.Errorf("start peer: %w", err)
	}
	return peer, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 打开协议引擎
//
// Overlay.AutoBootstrap 开启时在后台引导，失败以 EvtError 通知。
func (p *Peer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	if p.started {
		return ErrAlreadyStarted
	}
	if err := p.app.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), DefaultStopTimeout)
		defer cancel()
		_ = p.app.Stop(stopCtx)
		p.closed = true
		return err
	}
	p.started = true
	log.Info("peer started", "address", p.keys.DiceAddress().String(), "generation", p.socket.Node().Generation())
	return nil
}

// Close 停止节点并释放全部资源，可重复调用
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), DefaultStopTimeout)
	defer cancel()
	if !p.started {
		// 未启动时 fx 不会执行 OnStop，直接关闭已占用的资源
		return multierr.Append(p.socket.Close(), p.generation.Close())
	}
	if err := p.app.Stop(ctx); err != nil {
		return err
	}
	log.Info("peer closed", "address", p.keys.DiceAddress().String())
	return nil
}

// State 引擎状态
func (p *Peer) State() State {
	return p.socket.State()
}

func (p *Peer) checkStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	if !p.started {
		return ErrNotStarted
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// Address 节点身份
func (p *Peer) Address() Address {
	return p.keys.DiceAddress()
}

// Keys 节点密钥
func (p *Peer) Keys() *keys.Keys {
	return p.keys
}

// Node 当前签名的本节点记录
func (p *Peer) Node() *Node {
	return p.socket.Node()
}

// Table 路由表
func (p *Peer) Table() *Table {
	return p.socket.Table()
}

// Config 生效的配置
func (p *Peer) Config() config.Config {
	return *p.config
}

// MetricsHandler /metrics 的 HTTP handler；指标关闭或注册表不可采集时为 nil
func (p *Peer) MetricsHandler() http.Handler {
	if p.gatherer == nil {
		return nil
	}
	return metrics.Handler(p.gatherer)
}

// ════════════════════════════════════════════════════════════════════════════
//                              覆盖网络操作
// ════════════════════════════════════════════════════════════════════════════

// Bootstrap 探测 NAT 类别、签发新记录并向覆盖网络公告
func (p *Peer) Bootstrap(ctx context.Context) error {
	if err := p.checkStarted(); err != nil {
		return err
	}
	return p.socket.Bootstrap(ctx)
}

// Send 向身份 id 投递数据，必要时先查找其记录
func (p *Peer) Send(ctx context.Context, id Address, payload []byte) error {
	if err := p.checkStarted(); err != nil {
		return err
	}
	return p.socket.Send(ctx, id, payload)
}

// SendNode 向已知记录的节点投递数据
func (p *Peer) SendNode(ctx context.Context, n *Node, payload []byte) error {
	if err := p.checkStarted(); err != nil {
		return err
	}
	return p.socket.SendNode(ctx, n, payload)
}

// Ping 测量到节点的往返时间
func (p *Peer) Ping(ctx context.Context, n *Node) (time.Duration, error) {
	if err := p.checkStarted(); err != nil {
		return 0, err
	}
	return p.socket.Ping(ctx, n)
}

// PingAddress 直接 ping 一个地址，返回对端的记录
func (p *Peer) PingAddress(ctx context.Context, addr NetworkAddress) (*Node, error) {
	if err := p.checkStarted(); err != nil {
		return nil, err
	}
	return p.socket.PingAddress(ctx, addr)
}

// Lookup 查找身份对应的记录
func (p *Peer) Lookup(ctx context.Context, id Address) (*Node, error) {
	if err := p.checkStarted(); err != nil {
		return nil, err
	}
	return p.socket.Lookup(ctx, id)
}

// FindClosest 返回覆盖网络中距 id 最近的节点，按距离升序
func (p *Peer) FindClosest(ctx context.Context, id Address) ([]*Node, error) {
	if err := p.checkStarted(); err != nil {
		return nil, err
	}
	return p.socket.FindClosest(ctx, id)
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅事件，evt 为事件类型的指针，例如 new(dice.EvtNodeAdded)
func (p *Peer) Subscribe(evt any, bufSize ...int) (*Subscription, error) {
	var opts []eventbus.SubscriptionOpt
	if len(bufSize) > 0 {
		opts = append(opts, eventbus.BufSize(bufSize[0]))
	}
	return p.bus.Subscribe(evt, opts...)
}

// SubscribeData 订阅收到的数据
func (p *Peer) SubscribeData() (*Subscription, error) {
	return p.Subscribe(new(EvtData))
}
