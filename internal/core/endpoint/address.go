package endpoint

import (
	"fmt"
	"net/netip"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/pkg/types"
)

// EncodeAddress 写入 networkAddress：family(1) | ip(4/16) | port(2, 大端)
func EncodeAddress(w *codec.Writer, a types.NetworkAddress) {
	family := a.Family()
	w.Byte(byte(family))
	if family == types.IPv4 {
		ip := a.IP.As4()
		w.Fixed(ip[:])
	} else {
		ip := a.IP.As16()
		w.Fixed(ip[:])
	}
	w.Uint16(a.Port)
}

// DecodeAddress 读取 networkAddress
func DecodeAddress(r *codec.Reader) types.NetworkAddress {
	family := types.IPFamily(r.Byte())
	if r.Err() != nil {
		return types.NetworkAddress{}
	}

	var ip netip.Addr
	switch family {
	case types.IPv4:
		var b [4]byte
		r.Fixed(b[:])
		ip = netip.AddrFrom4(b)
	case types.IPv6:
		var b [16]byte
		r.Fixed(b[:])
		ip = netip.AddrFrom16(b)
		if ip.Is4In6() {
			r.Fail(fmt.Errorf("%w: ipv4-mapped address in ipv6 slot", ErrInvalidAddress))
			return types.NetworkAddress{}
		}
	default:
		r.Fail(fmt.Errorf("%w: family %d", ErrInvalidAddress, family))
		return types.NetworkAddress{}
	}
	port := r.Uint16()
	if r.Err() != nil {
		return types.NetworkAddress{}
	}

	a := types.NewNetworkAddress(ip, port)
	if !a.IsValid() {
		r.Fail(fmt.Errorf("%w: %s", ErrInvalidAddress, a))
		return types.NetworkAddress{}
	}
	return a
}
