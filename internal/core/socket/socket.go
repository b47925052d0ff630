package socket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dice/internal/core/cache"
	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/metrics"
	"github.com/dep2p/go-dice/internal/core/portmap"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/stun"
	"github.com/dep2p/go-dice/internal/core/table"
	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/internal/util/logger"
	"github.com/dep2p/go-dice/pkg/types"
)

var log = logger.Logger("socket")

// State 引擎状态
type State int32

const (
	StateNew State = iota
	StateOpened
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOpened:
		return "opened"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option 构造选项
type Option func(*options)

type options struct {
	clock      clock.Clock
	metrics    metrics.Reporter
	bus        *eventbus.Bus
	generation uint64
}

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics 指标记录器
func WithMetrics(r metrics.Reporter) Option {
	return func(o *options) { o.metrics = r }
}

// WithEventBus 共享外部事件总线
func WithEventBus(b *eventbus.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithGeneration 本进程的 generation
func WithGeneration(g uint64) Option {
	return func(o *options) { o.generation = g }
}

// ============================================================================
//                              Socket
// ============================================================================

// Socket 单个节点的协议引擎
//
// 拥有路由表、各类缓存、挂起请求表与本节点记录，所有状态仅属于这一个实例。
type Socket struct {
	cfg       Config
	keys      *keys.Keys
	transport transport.Transport
	table     *table.Table
	bus       *eventbus.Bus
	metrics   metrics.Reporter
	clock     clock.Clock

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	localMu sync.RWMutex
	local   *record.Node

	pendingMu   sync.Mutex
	pending     map[string]*pendingRequest
	stunPending map[stun.TransactionID]chan types.NetworkAddress

	// addresses 覆盖网络中见过的 Direct 地址，路由表清空时用于重新引导
	addresses *cache.Cache[types.NetworkAddress]
	// contacts 最近直接收到其消息的身份及其来源地址
	contacts *cache.Cache[types.NetworkAddress]
	// sent 最近发送过数据报的地址
	sent *cache.Cache[struct{}]
	// punches 已成功打洞的 (source, target, family)
	punches *cache.Cache[struct{}]
	// reveals 对称 NAT 目标为本端分配的地址
	reveals *cache.Cache[types.NetworkAddress]

	limiter *limiter

	bootstrapMu  sync.Mutex
	nodeCheck    atomic.Bool
	overlayCheck atomic.Bool
	nodeFailures atomic.Int32

	mapperMu sync.Mutex
	mapper   *portmap.Mapper
	mapped   types.NetworkAddress

	emitters emitters
}

type emitters struct {
	open    *eventbus.Emitter
	close   *eventbus.Emitter
	added   *eventbus.Emitter
	removed *eventbus.Emitter
	updated *eventbus.Emitter
	data    *eventbus.Emitter
	err     *eventbus.Emitter
	local   *eventbus.Emitter
}

// New 创建引擎，初始记录没有端点且处于禁用状态
func New(k *keys.Keys, tr transport.Transport, cfg Config, opts ...Option) (*Socket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{clock: clock.New(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = eventbus.NewBus()
	}

	local, err := record.Create(record.Fields{Generation: o.generation, IsDisabled: true}, k)
	if err != nil {
		return nil, err
	}

	cacheOpt := cache.WithClock(o.clock)
	s := &Socket{
		cfg:         cfg,
		keys:        k,
		transport:   tr,
		table:       table.New(k.DiceAddress(), table.Config{BucketSize: cfg.BucketSize}),
		bus:         o.bus,
		metrics:     o.metrics,
		clock:       o.clock,
		local:       local,
		pending:     make(map[string]*pendingRequest),
		stunPending: make(map[stun.TransactionID]chan types.NetworkAddress),
		addresses:   cache.New[types.NetworkAddress](cfg.Cache, cacheOpt),
		contacts:    cache.New[types.NetworkAddress](cfg.Cache, cacheOpt),
		sent:        cache.New[struct{}](cfg.Cache, cacheOpt),
		punches:     cache.New[struct{}](cfg.Cache, cacheOpt),
		reveals:     cache.New[types.NetworkAddress](cfg.Cache, cacheOpt),
		limiter:     newLimiter(cfg, cacheOpt),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := s.initEmitters(); err != nil {
		return nil, err
	}
	s.table.AddListener(tableListener{s})
	return s, nil
}

func (s *Socket) initEmitters() error {
	var err error
	mk := func(evt any, opts ...eventbus.EmitterOpt) *eventbus.Emitter {
		em, e := s.bus.Emitter(evt, opts...)
		err = multierr.Append(err, e)
		return em
	}
	s.emitters = emitters{
		open:    mk(new(eventbus.EvtOpen), eventbus.Stateful()),
		close:   mk(new(eventbus.EvtClose), eventbus.Stateful()),
		added:   mk(new(eventbus.EvtNodeAdded)),
		removed: mk(new(eventbus.EvtNodeRemoved)),
		updated: mk(new(eventbus.EvtNodeUpdated)),
		data:    mk(new(eventbus.EvtData)),
		err:     mk(new(eventbus.EvtError)),
		local:   mk(new(eventbus.EvtLocalUpdated)),
	}
	return err
}

// ============================================================================
//                              生命周期
// ============================================================================

// Open 开始接收数据报并启动健康检查
func (s *Socket) Open(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateNew), int32(StateOpened)) {
		return ErrAlreadyOpen
	}
	s.wg.Add(1)
	go s.readLoop()

	if s.cfg.NodeHealthcheckInterval > 0 {
		s.wg.Add(1)
		go s.tickLoop(s.cfg.NodeHealthcheckInterval, s.HealthcheckNode)
	}
	if s.cfg.OverlayHealthcheckInterval > 0 {
		s.wg.Add(1)
		go s.tickLoop(s.cfg.OverlayHealthcheckInterval, s.HealthcheckOverlay)
	}

	log.Info("socket opened", "id", s.keys.DiceAddress().ShortString(), "addrs", s.transport.LocalAddrs())
	s.emitters.open.Emit(eventbus.EvtOpen{Node: s.Node()})

	if s.cfg.AutoBootstrap {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Bootstrap(s.ctx); err != nil && s.ctx.Err() == nil {
				log.Warn("initial bootstrap failed", "err", err)
				s.emitError("bootstrap", err)
			}
		}()
	}
	return nil
}

// Close 停止全部后台任务，挂起的请求以 ErrClosed 失败
func (s *Socket) Close() error {
	if !s.state.CompareAndSwap(int32(StateOpened), int32(StateClosed)) {
		if s.state.CompareAndSwap(int32(StateNew), int32(StateClosed)) {
			s.cancel()
			return s.transport.Close()
		}
		return nil
	}
	s.cancel()

	var err error
	err = multierr.Append(err, s.transport.Close())
	s.wg.Wait()

	s.mapperMu.Lock()
	if s.mapper != nil {
		err = multierr.Append(err, s.mapper.Close())
		s.mapper = nil
	}
	s.mapperMu.Unlock()

	s.emitters.close.Emit(eventbus.EvtClose{})
	log.Info("socket closed", "id", s.keys.DiceAddress().ShortString())
	return err
}

// State 当前状态
func (s *Socket) State() State {
	return State(s.state.Load())
}

func (s *Socket) opened() bool {
	return s.State() == StateOpened
}

func (s *Socket) tickLoop(interval time.Duration, fn func(context.Context) error) {
	defer s.wg.Done()
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := fn(s.ctx); err != nil && s.ctx.Err() == nil {
				log.Debug("healthcheck failed", "err", err)
			}
		}
	}
}

// ============================================================================
//                              访问器
// ============================================================================

// Keys 本节点密钥
func (s *Socket) Keys() *keys.Keys {
	return s.keys
}

// DiceAddress 本节点身份
func (s *Socket) DiceAddress() types.DiceAddress {
	return s.keys.DiceAddress()
}

// Node 当前的本节点记录
func (s *Socket) Node() *record.Node {
	s.localMu.RLock()
	defer s.localMu.RUnlock()
	return s.local
}

// Table 路由表
func (s *Socket) Table() *table.Table {
	return s.table
}

// Bus 事件总线
func (s *Socket) Bus() *eventbus.Bus {
	return s.bus
}

// Config 引擎配置
func (s *Socket) Config() Config {
	return s.cfg
}

// updateLocal 合并 patch 并重新签名本节点记录；无变化时不发布事件
func (s *Socket) updateLocal(p record.Patch) (*record.Node, error) {
	s.localMu.Lock()
	old := s.local
	n, err := record.Update(old, p, s.keys)
	if err != nil {
		s.localMu.Unlock()
		return nil, err
	}
	s.local = n
	s.localMu.Unlock()

	if n != old {
		log.Info("local record updated", "node", n)
		s.emitters.local.Emit(eventbus.EvtLocalUpdated{Node: n})
	}
	return n, nil
}

func (s *Socket) emitError(op string, err error) {
	s.emitters.err.Emit(eventbus.EvtError{Op: op, Err: err})
}

// families 本地传输监听的地址族，按监听顺序
func (s *Socket) families() []types.IPFamily {
	var out []types.IPFamily
	for _, a := range s.transport.LocalAddrs() {
		f := a.Family()
		if !containsFamily(out, f) {
			out = append(out, f)
		}
	}
	return out
}

func containsFamily(list []types.IPFamily, f types.IPFamily) bool {
	for _, x := range list {
		if x == f {
			return true
		}
	}
	return false
}

// planningEndpoints 本端用于规划的端点；尚未探测时按对称 NAT 处理
func (s *Socket) planningEndpoints() []endpoint.Endpoint {
	if eps := s.Node().Endpoints(); len(eps) > 0 {
		return eps
	}
	var out []endpoint.Endpoint
	for _, a := range s.transport.LocalAddrs() {
		out = append(out, endpoint.Symmetric{Addr: a, Relay: a})
	}
	return out
}

// ============================================================================
//                              路由表观察者
// ============================================================================

type tableListener struct {
	s *Socket
}

func (l tableListener) NodeAdded(n *record.Node) {
	l.s.metrics.SetTableSize(l.s.table.Size())
	l.s.emitters.added.Emit(eventbus.EvtNodeAdded{Node: n})
}

func (l tableListener) NodeRemoved(n *record.Node) {
	l.s.metrics.SetTableSize(l.s.table.Size())
	l.s.emitters.removed.Emit(eventbus.EvtNodeRemoved{Node: n})
}

func (l tableListener) NodeUpdated(old, n *record.Node) {
	l.s.emitters.updated.Emit(eventbus.EvtNodeUpdated{Old: old, New: n})
}

// ============================================================================
//                              收发
// ============================================================================

func (s *Socket) readLoop() {
	defer s.wg.Done()
	packets := s.transport.Packets()
	for {
		select {
		case <-s.ctx.Done():
			return
		case p, ok := <-packets:
			if !ok {
				return
			}
			s.handlePacket(p)
		}
	}
}

// encode 用当前本节点记录签名消息
func (s *Socket) encode(body message.Body) ([]byte, error) {
	return message.Encode(s.Node(), body, s.keys)
}

// sendRaw 发送已编码的数据报
func (s *Socket) sendRaw(ctx context.Context, to types.NetworkAddress, data []byte, tag message.Tag) error {
	if !s.opened() {
		return ErrNotOpen
	}
	if err := s.transport.Send(ctx, data, to); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	s.sent.Set(to.String(), struct{}{})
	s.metrics.MessageSent(tag.String(), len(data))
	return nil
}

// sendTo 编码并直接发往 to
func (s *Socket) sendTo(ctx context.Context, to types.NetworkAddress, body message.Body) error {
	data, err := s.encode(body)
	if err != nil {
		return err
	}
	return s.sendRaw(ctx, to, data, body.Tag())
}
