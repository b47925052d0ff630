package portmap

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/dep2p/go-dice/internal/util/logger"
	"github.com/dep2p/go-dice/pkg/types"
)

var log = logger.Logger("portmap")

const (
	// DefaultTimeout 网关发现与单次请求超时
	DefaultTimeout = 2 * time.Second

	// DefaultLease 映射租约
	DefaultLease = time.Hour

	description = "dice"
)

// gatewayClient 具体协议的最小操作集
type gatewayClient interface {
	protocol() string
	externalIP(ctx context.Context) (netip.Addr, error)
	addMapping(ctx context.Context, internal, external uint16, lease time.Duration) (uint16, error)
	deleteMapping(ctx context.Context, external uint16) error
}

// Config 映射器配置
type Config struct {
	Timeout time.Duration
	Lease   time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Lease:   DefaultLease,
	}
}

// Mapper 维护一组 UDP 端口映射
type Mapper struct {
	cfg    Config
	client gatewayClient

	mu       sync.Mutex
	mappings map[uint16]uint16 // internal -> external
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Discover 依次尝试 UPnP 与 NAT-PMP，返回第一个可用网关的映射器
func Discover(ctx context.Context, cfg Config) (*Mapper, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}

	discoverers := []func(context.Context, time.Duration) (gatewayClient, error){
		discoverUPnP,
		discoverNATPMP,
	}
	for _, discover := range discoverers {
		dctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		c, err := discover(dctx, cfg.Timeout)
		cancel()
		if err != nil {
			log.Debug("网关发现失败", "err", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		log.Info("发现网关", "protocol", c.protocol())
		return newMapper(cfg, c), nil
	}
	return nil, ErrNoGateway
}

func newMapper(cfg Config, c gatewayClient) *Mapper {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mapper{
		cfg:      cfg,
		client:   c,
		mappings: make(map[uint16]uint16),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.wg.Add(1)
	go m.renewLoop()
	return m
}

// Protocol 使用中的网关协议
func (m *Mapper) Protocol() string {
	return m.client.protocol()
}

// Map 映射本地 UDP 端口，返回外部地址
func (m *Mapper) Map(ctx context.Context, internal uint16) (types.NetworkAddress, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return types.NetworkAddress{}, ErrClosed
	}
	m.mu.Unlock()

	ip, err := m.externalIP(ctx)
	if err != nil {
		return types.NetworkAddress{}, err
	}

	rctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	external, err := m.client.addMapping(rctx, internal, internal, m.cfg.Lease)
	if err != nil {
		return types.NetworkAddress{}, &MappingError{Protocol: m.client.protocol(), Port: internal, Cause: err}
	}

	m.mu.Lock()
	m.mappings[internal] = external
	m.mu.Unlock()

	addr := types.NewNetworkAddress(ip, external)
	log.Info("端口映射成功", "protocol", m.client.protocol(), "internal", internal, "external", addr)
	return addr, nil
}

func (m *Mapper) externalIP(ctx context.Context) (netip.Addr, error) {
	rctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	ip, err := m.client.externalIP(rctx)
	if err != nil {
		return netip.Addr{}, err
	}
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsUnspecified() || ip.IsPrivate() || ip.IsLoopback() {
		return netip.Addr{}, ErrInvalidExternalIP
	}
	return ip, nil
}

// renewLoop 在租约过半时续期
func (m *Mapper) renewLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Lease / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.renew()
		}
	}
}

func (m *Mapper) renew() {
	m.mu.Lock()
	current := make(map[uint16]uint16, len(m.mappings))
	for in, ex := range m.mappings {
		current[in] = ex
	}
	m.mu.Unlock()

	for in, ex := range current {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.Timeout)
		got, err := m.client.addMapping(ctx, in, ex, m.cfg.Lease)
		cancel()
		if err != nil {
			log.Warn("续期端口映射失败", "internal", in, "err", err)
			continue
		}
		if got != ex {
			log.Info("网关更换了外部端口", "internal", in, "old", ex, "new", got)
			m.mu.Lock()
			m.mappings[in] = got
			m.mu.Unlock()
		}
	}
}

// Close 停止续期并删除全部映射
func (m *Mapper) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	current := m.mappings
	m.mappings = make(map[uint16]uint16)
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	for _, ex := range current {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		if err := m.client.deleteMapping(ctx, ex); err != nil {
			log.Debug("删除端口映射失败", "external", ex, "err", err)
		}
		cancel()
	}
	return nil
}

// await 在 ctx 内等待阻塞调用；网关库本身不支持取消
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
