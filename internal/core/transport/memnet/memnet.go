package memnet

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/pkg/types"
)

// Kind 主机所在的网络环境
type Kind int

const (
	// Public 公网主机
	Public Kind = iota
	// PortRestricted 端口受限锥形 NAT 之后
	PortRestricted
	// Symmetric 对称 NAT 之后
	Symmetric
)

func (k Kind) String() string {
	switch k {
	case Public:
		return "public"
	case PortRestricted:
		return "port-restricted"
	case Symmetric:
		return "symmetric"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const firstNATPort = 40000

// binding 外部地址到主机的映射
type binding struct {
	host *Host
	// remote 对称 NAT 映射只接收这个远端
	remote types.NetworkAddress
}

// Network 内存网络
type Network struct {
	mu        sync.Mutex
	bindings  map[types.NetworkAddress]binding
	nextPort  map[netip.Addr]uint16
	queueSize int
	dropped   int
	delivered int
}

// New 创建网络
func New() *Network {
	return &Network{
		bindings:  make(map[types.NetworkAddress]binding),
		nextPort:  make(map[netip.Addr]uint16),
		queueSize: 1024,
	}
}

// AddPublic 加入一个公网主机
func (n *Network) AddPublic(addr string) (*Host, error) {
	a, err := types.ParseNetworkAddress(addr)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, taken := n.bindings[a]; taken {
		return nil, fmt.Errorf("memnet: address %s in use", a)
	}
	h := n.newHost(Public, a)
	n.bindings[a] = binding{host: h}
	return h, nil
}

// AddPortRestricted 在出口 IP 为 natIP 的端口受限 NAT 后加入一个主机
func (n *Network) AddPortRestricted(natIP string) (*Host, error) {
	ip, err := netip.ParseAddr(natIP)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	h := n.newHost(PortRestricted, privateAddr(ip))
	h.natIP = ip
	h.mapped = n.allocLocked(ip)
	n.bindings[h.mapped] = binding{host: h}
	return h, nil
}

// AddSymmetric 在出口 IP 为 natIP 的对称 NAT 后加入一个主机
func (n *Network) AddSymmetric(natIP string) (*Host, error) {
	ip, err := netip.ParseAddr(natIP)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	h := n.newHost(Symmetric, privateAddr(ip))
	h.natIP = ip
	return h, nil
}

// Stats 已投递与被丢弃的数据报数
func (n *Network) Stats() (delivered, dropped int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered, n.dropped
}

func (n *Network) newHost(kind Kind, local types.NetworkAddress) *Host {
	return &Host{
		network: n,
		kind:    kind,
		local:   local,
		perDest: make(map[types.NetworkAddress]types.NetworkAddress),
		permits: make(map[types.NetworkAddress]struct{}),
		packets: make(chan transport.Packet, n.queueSize),
	}
}

func (n *Network) allocLocked(ip netip.Addr) types.NetworkAddress {
	port := n.nextPort[ip]
	if port == 0 {
		port = firstNATPort
	}
	n.nextPort[ip] = port + 1
	return types.NewNetworkAddress(ip, port)
}

// privateAddr NAT 后主机的内网地址（只用于 LocalAddrs，不可路由）
func privateAddr(natIP netip.Addr) types.NetworkAddress {
	if natIP.Is4() {
		return types.NewNetworkAddress(netip.MustParseAddr("10.0.0.2"), 4000)
	}
	return types.NewNetworkAddress(netip.MustParseAddr("fd00::2"), 4000)
}

// deliver 按接收方 NAT 规则投递
func (n *Network) deliver(src, dst types.NetworkAddress, data []byte) {
	n.mu.Lock()
	b, ok := n.bindings[dst]
	if ok && !b.host.acceptsLocked(b, src) {
		ok = false
	}
	if !ok {
		n.dropped++
		n.mu.Unlock()
		return
	}
	n.delivered++
	n.mu.Unlock()

	b.host.enqueue(transport.Packet{Data: append([]byte(nil), data...), From: src})
}

// ============================================================================
//                              Host
// ============================================================================

// Host 内存网络中的主机，实现 transport.Transport
type Host struct {
	network *Network
	kind    Kind
	local   types.NetworkAddress
	natIP   netip.Addr
	mapped  types.NetworkAddress

	// 以下字段由 network.mu 保护
	perDest map[types.NetworkAddress]types.NetworkAddress
	permits map[types.NetworkAddress]struct{}
	closed  bool

	packetsMu sync.Mutex
	packets   chan transport.Packet
	queueShut bool
}

var _ transport.Transport = (*Host)(nil)

// Kind 主机类型
func (h *Host) Kind() Kind {
	return h.kind
}

// PublicAddr Public 主机的地址或端口受限 NAT 的固定映射地址；对称 NAT 主机返回 false
func (h *Host) PublicAddr() (types.NetworkAddress, bool) {
	switch h.kind {
	case Public:
		return h.local, true
	case PortRestricted:
		return h.mapped, true
	default:
		return types.NetworkAddress{}, false
	}
}

// Send 经 NAT 改写源地址后投递
func (h *Host) Send(ctx context.Context, data []byte, to types.NetworkAddress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: %s", transport.ErrInvalidAddress, to)
	}

	n := h.network
	n.mu.Lock()
	if h.closed {
		n.mu.Unlock()
		return transport.ErrClosed
	}
	var src types.NetworkAddress
	switch h.kind {
	case Public:
		src = h.local
	case PortRestricted:
		src = h.mapped
		h.permits[to] = struct{}{}
	case Symmetric:
		ext, ok := h.perDest[to]
		if !ok {
			ext = n.allocLocked(h.natIP)
			h.perDest[to] = ext
			n.bindings[ext] = binding{host: h, remote: to}
		}
		src = ext
	}
	n.mu.Unlock()

	n.deliver(src, to, data)
	return nil
}

// acceptsLocked 调用方持有 network.mu
func (h *Host) acceptsLocked(b binding, src types.NetworkAddress) bool {
	if h.closed {
		return false
	}
	switch h.kind {
	case Public:
		return true
	case PortRestricted:
		_, ok := h.permits[src]
		return ok
	case Symmetric:
		return b.remote == src
	}
	return false
}

func (h *Host) enqueue(p transport.Packet) {
	h.packetsMu.Lock()
	defer h.packetsMu.Unlock()
	if h.queueShut {
		return
	}
	select {
	case h.packets <- p:
	default:
	}
}

// Packets 入站数据报
func (h *Host) Packets() <-chan transport.Packet {
	return h.packets
}

// LocalAddrs 本地地址（NAT 后主机为内网地址）
func (h *Host) LocalAddrs() []types.NetworkAddress {
	return []types.NetworkAddress{h.local}
}

// Close 解除全部映射并关闭入站通道
func (h *Host) Close() error {
	n := h.network
	n.mu.Lock()
	if h.closed {
		n.mu.Unlock()
		return nil
	}
	h.closed = true
	for addr, b := range n.bindings {
		if b.host == h {
			delete(n.bindings, addr)
		}
	}
	n.mu.Unlock()

	h.packetsMu.Lock()
	close(h.packets)
	h.queueShut = true
	h.packetsMu.Unlock()
	return nil
}
