package types

import (
	"fmt"
	"net"
	"net/netip"
)

// ============================================================================
//                              IPFamily - 地址族
// ============================================================================

// IPFamily 地址族
type IPFamily uint8

const (
	// IPv4 地址族
	IPv4 IPFamily = 4
	// IPv6 地址族
	IPv6 IPFamily = 6
)

// String 返回地址族名称
func (f IPFamily) String() string {
	switch f {
	case IPv4:
		return "ip4"
	case IPv6:
		return "ip6"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// Valid 是否为已知地址族
func (f IPFamily) Valid() bool {
	return f == IPv4 || f == IPv6
}

// AddrLen 该地址族地址的字节数
func (f IPFamily) AddrLen() int {
	if f == IPv6 {
		return net.IPv6len
	}
	return net.IPv4len
}

// ParseIPFamily 解析 "ip4"/"ip6"/"4"/"6"
func ParseIPFamily(s string) (IPFamily, error) {
	switch s {
	case "ip4", "4", "ipv4":
		return IPv4, nil
	case "ip6", "6", "ipv6":
		return IPv6, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIPFamily, s)
}

// ============================================================================
//                              NetworkAddress - UDP 地址
// ============================================================================

// NetworkAddress UDP 地址 {family, address, port}
//
// 值类型，可作为 map 键。IPv4-mapped IPv6 地址统一折叠为 IPv4。
type NetworkAddress struct {
	IP   netip.Addr
	Port uint16
}

// NewNetworkAddress 构造地址
func NewNetworkAddress(ip netip.Addr, port uint16) NetworkAddress {
	return NetworkAddress{IP: ip.Unmap(), Port: port}
}

// Family 地址族
func (a NetworkAddress) Family() IPFamily {
	if a.IP.Is4() {
		return IPv4
	}
	return IPv6
}

// IsValid 是否为可用的单播地址
func (a NetworkAddress) IsValid() bool {
	return a.IP.IsValid() && a.Port != 0 && !a.IP.IsUnspecified() && !a.IP.IsMulticast()
}

// AddrPort 转换为 netip.AddrPort
func (a NetworkAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.IP, a.Port)
}

// UDPAddr 转换为 *net.UDPAddr
func (a NetworkAddress) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(a.AddrPort())
}

// String 返回 "ip:port" / "[ip6]:port"
func (a NetworkAddress) String() string {
	if !a.IP.IsValid() {
		return "<nil>"
	}
	return a.AddrPort().String()
}

// NetworkAddressFromUDP 从 *net.UDPAddr 构造
func NetworkAddressFromUDP(addr *net.UDPAddr) NetworkAddress {
	if addr == nil {
		return NetworkAddress{}
	}
	return NetworkAddressFromAddrPort(addr.AddrPort())
}

// NetworkAddressFromAddrPort 从 netip.AddrPort 构造
func NetworkAddressFromAddrPort(ap netip.AddrPort) NetworkAddress {
	return NewNetworkAddress(ap.Addr(), ap.Port())
}

// ParseNetworkAddress 解析 "1.2.3.4:5000" 或 "[::1]:5000"
func ParseNetworkAddress(s string) (NetworkAddress, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return NetworkAddress{}, fmt.Errorf("%w: %v", ErrInvalidNetworkAddress, err)
	}
	a := NetworkAddressFromAddrPort(ap)
	if !a.IsValid() {
		return NetworkAddress{}, fmt.Errorf("%w: %q", ErrInvalidNetworkAddress, s)
	}
	return a, nil
}
