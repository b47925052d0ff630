package socket

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/internal/core/portmap"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

// ============================================================================
//                              引导
// ============================================================================

// Bootstrap 探测本端可达性，签发新的本节点记录并向覆盖网络公告
//
// 按地址族依次探测：先判断是否对称 NAT，再确认外部映射稳定，
// 最后请第三方节点打洞验证能否接收主动入站。
func (s *Socket) Bootstrap(ctx context.Context) error {
	if !s.opened() {
		return ErrNotOpen
	}
	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()

	var mapped types.NetworkAddress
	if s.cfg.PortMapping {
		a, err := s.mapPort(ctx)
		if err != nil {
			log.Info("port mapping unavailable", "err", err)
		} else {
			mapped = a
		}
	}

	var err error
	if s.cfg.ForceNATType != types.NATTypeUnknown {
		err = s.bootstrapForced(ctx)
	} else {
		err = s.bootstrapProbe(ctx, mapped)
	}
	s.metrics.Healthcheck("bootstrap", err == nil)
	if err != nil {
		return err
	}

	s.announce(ctx)
	return nil
}

// bootstrapForced 跳过探测，以配置的类别签发记录后 ping 全部引导节点
func (s *Socket) bootstrapForced(ctx context.Context) error {
	var eps []endpoint.Endpoint
	if s.cfg.ForceNATType == types.NATTypeDirect && len(s.cfg.PublicAddrs) > 0 {
		for _, a := range s.cfg.PublicAddrs {
			eps = append(eps, endpoint.Direct{Addr: a})
		}
	} else {
		for _, f := range s.families() {
			e, err := s.forcedEndpoint(ctx, f)
			if err != nil {
				log.Warn("forced endpoint unavailable", "family", f, "err", err)
				continue
			}
			eps = append(eps, e)
		}
	}
	if len(eps) == 0 {
		return fmt.Errorf("socket: bootstrap as %s: %w", s.cfg.ForceNATType, ErrNoReflector)
	}
	if _, err := s.publish(eps); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.HealthcheckConcurrency)
	for _, addr := range s.cfg.BootstrapPeers {
		g.Go(func() error {
			if _, err := s.PingAddress(gctx, addr); err != nil {
				log.Debug("bootstrap peer unreachable", "addr", addr, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// forcedEndpoint 用引导节点反射出的地址构造配置类别的端点；
// 没有引导节点时 Direct 退回到本地监听地址
func (s *Socket) forcedEndpoint(ctx context.Context, f types.IPFamily) (endpoint.Endpoint, error) {
	_, relay, err := s.firstReachable(ctx, f)
	if err != nil {
		if s.cfg.ForceNATType == types.NATTypeDirect {
			for _, a := range s.transport.LocalAddrs() {
				if a.Family() == f && !a.AddrPort().Addr().IsUnspecified() {
					return endpoint.Direct{Addr: a}, nil
				}
			}
		}
		return nil, err
	}
	observed, _, err := s.reflect(ctx, relay)
	if err != nil {
		return nil, err
	}
	switch s.cfg.ForceNATType {
	case types.NATTypeDirect:
		return endpoint.Direct{Addr: observed}, nil
	case types.NATTypeRelayed:
		return endpoint.Relayed{Addr: observed, Relay: relay}, nil
	default:
		return endpoint.Symmetric{Addr: observed, Relay: relay}, nil
	}
}

// bootstrapProbe 逐个地址族探测 NAT 类别
func (s *Socket) bootstrapProbe(ctx context.Context, mapped types.NetworkAddress) error {
	var eps []endpoint.Endpoint
	var errs error
	for _, f := range s.families() {
		e, err := s.probeFamily(ctx, f, mapped)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		eps = append(eps, e)
	}
	if len(eps) == 0 {
		if errs == nil {
			errs = ErrNoPeers
		}
		return fmt.Errorf("socket: bootstrap: %w", errs)
	}
	endpoint.SortByScore(eps)
	_, err := s.publish(eps)
	return err
}

func (s *Socket) probeFamily(ctx context.Context, f types.IPFamily, mapped types.NetworkAddress) (endpoint.Endpoint, error) {
	a, relay, err := s.firstReachable(ctx, f)
	if err != nil {
		return nil, err
	}
	if _, err := s.listNodes(ctx, a, s.DiceAddress()); err != nil {
		log.Debug("initial listNodes failed", "peer", a.DiceAddress().ShortString(), "err", err)
	}

	// NAT4: 两个反射点看到的地址不同即为对称 NAT
	observed, _, err := s.reflect(ctx, relay)
	if err != nil {
		return nil, err
	}
	second, err := s.secondReflection(ctx, f, a.DiceAddress())
	if err != nil {
		log.Info("no second reflector, assuming symmetric", "family", f, "err", err)
		return endpoint.Symmetric{Addr: observed, Relay: relay}, nil
	}
	if second != observed {
		log.Info("symmetric nat detected", "family", f, "first", observed, "second", second)
		return endpoint.Symmetric{Addr: observed, Relay: relay}, nil
	}

	// NAT3 已确认；NAT1 需要第三方节点能主动打进来
	var candidates []types.NetworkAddress
	if mapped.IsValid() && mapped.Family() == f {
		candidates = append(candidates, mapped)
	}
	candidates = append(candidates, observed)
	for _, src := range candidates {
		err := s.probeDirect(ctx, a.DiceAddress(), relay, src)
		if err == nil {
			log.Info("direct reachability confirmed", "family", f, "addr", src)
			return endpoint.Direct{Addr: src}, nil
		}
		log.Debug("direct probe failed", "addr", src, "err", err)
	}
	return endpoint.Relayed{Addr: observed, Relay: relay}, nil
}

// firstReachable 第一个应答 ping 的引导节点，之后是地址池中的节点
func (s *Socket) firstReachable(ctx context.Context, f types.IPFamily) (*record.Node, types.NetworkAddress, error) {
	tried := make(map[types.NetworkAddress]struct{})
	candidates := append([]types.NetworkAddress(nil), s.cfg.BootstrapPeers...)
	candidates = append(candidates, s.addresses.Values()...)
	for _, addr := range candidates {
		if addr.Family() != f {
			continue
		}
		if _, ok := tried[addr]; ok {
			continue
		}
		tried[addr] = struct{}{}
		n, err := s.PingAddress(ctx, addr)
		if err == nil {
			return n, addr, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrClosed) {
			return nil, types.NetworkAddress{}, err
		}
		log.Debug("bootstrap candidate unreachable", "addr", addr, "err", err)
	}
	return nil, types.NetworkAddress{}, ErrNoPeers
}

// secondReflection 向第二个 Direct 节点请求反射，不足时使用 STUN 服务器
func (s *Socket) secondReflection(ctx context.Context, f types.IPFamily, exclude types.DiceAddress) (types.NetworkAddress, error) {
	const attempts = 3
	tried := 0
	for _, n := range s.directNodes(f, exclude) {
		addr, _ := n.DirectAddress(f)
		observed, _, err := s.reflect(ctx, addr)
		if err == nil {
			return observed, nil
		}
		if tried++; tried == attempts {
			break
		}
	}
	for _, server := range s.cfg.STUNServers {
		if server.Family() != f {
			continue
		}
		observed, err := s.stunProbe(ctx, server)
		if err == nil {
			return observed, nil
		}
		log.Debug("stun probe failed", "server", server, "err", err)
	}
	return types.NetworkAddress{}, ErrNoReflector
}

// probeDirect 请 relay 把 punch 转给一个本端从未发送过数据的 Direct 节点；
// 收到它的 punchResponse 说明本端能接收主动入站
func (s *Socket) probeDirect(ctx context.Context, relayID types.DiceAddress, relay, source types.NetworkAddress) error {
	const attempts = 2
	tried := 0
	var last error = ErrNoPeers
	for _, c := range s.directNodes(source.Family(), relayID) {
		addr, _ := c.DirectAddress(source.Family())
		if s.sent.Has(addr.String()) {
			continue
		}
		body := message.Punch{
			TransactionID: types.NewTransactionID(),
			Target:        c.DiceAddress(),
			Source:        source,
		}
		a := Assertions{Tags: []message.Tag{message.TagPunchResponse}, From: c.DiceAddress()}
		_, err := s.requestAddr(ctx, relay, body, a)
		if err == nil {
			return nil
		}
		last = err
		if tried++; tried == attempts {
			break
		}
	}
	return last
}

// directNodes 路由表中指定地址族的 Direct 节点，按距本节点由近到远
func (s *Socket) directNodes(f types.IPFamily, exclude types.DiceAddress) []*record.Node {
	var out []*record.Node
	for _, n := range s.table.ListClosestTo(s.DiceAddress(), s.table.Size()) {
		if n.DiceAddress() == exclude {
			continue
		}
		if _, ok := n.DirectAddress(f); ok {
			out = append(out, n)
		}
	}
	return out
}

// publish 以新端点签发本节点记录并解除禁用
func (s *Socket) publish(eps []endpoint.Endpoint) (*record.Node, error) {
	n, err := s.updateLocal(record.Patch{
		Endpoints:  eps,
		IsDisabled: record.Ptr(false),
	})
	if err != nil {
		return nil, err
	}
	log.Info("bootstrapped", "nat", n.NATType(), "endpoints", n.Endpoints())
	return n, nil
}

// announce 自查找后 ping 最近的节点，使它们收录新记录
func (s *Socket) announce(ctx context.Context) {
	nodes, err := s.FindClosest(ctx, s.DiceAddress())
	if err != nil {
		log.Debug("announce lookup failed", "err", err)
		nodes = s.table.ListClosestTo(s.DiceAddress(), s.cfg.LookupResultSize)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.HealthcheckConcurrency)
	for _, n := range nodes {
		g.Go(func() error {
			if _, err := s.Ping(gctx, n); err != nil {
				log.Debug("announce ping failed", "peer", n.DiceAddress().ShortString(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ============================================================================
//                              端口映射
// ============================================================================

// mapPort 在网关上映射本地 IPv4 UDP 端口，映射器在引擎关闭前一直续期
func (s *Socket) mapPort(ctx context.Context) (types.NetworkAddress, error) {
	var local types.NetworkAddress
	for _, a := range s.transport.LocalAddrs() {
		if a.Family() == types.IPv4 {
			local = a
			break
		}
	}
	if !local.IsValid() {
		return types.NetworkAddress{}, errors.New("socket: no ipv4 listener to map")
	}

	s.mapperMu.Lock()
	defer s.mapperMu.Unlock()
	if s.mapper == nil {
		m, err := portmap.Discover(ctx, portmap.DefaultConfig())
		if err != nil {
			return types.NetworkAddress{}, err
		}
		s.mapper = m
	}
	addr, err := s.mapper.Map(ctx, local.AddrPort().Port())
	if err != nil {
		return types.NetworkAddress{}, err
	}
	s.mapped = addr
	log.Info("port mapped", "protocol", s.mapper.Protocol(), "internal", local, "external", addr)
	return addr, nil
}

func (s *Socket) mappedAddr() types.NetworkAddress {
	s.mapperMu.Lock()
	defer s.mapperMu.Unlock()
	return s.mapped
}
