package endpoint

import (
	"fmt"
	"sort"

	"github.com/dep2p/go-dice/internal/core/codec"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/pkg/types"
)

// Endpoint 节点端点
//
// 只有本包的 Direct、Relayed、Symmetric 实现该接口，类型分支应覆盖全部三种。
type Endpoint interface {
	// NATType 端点的 NAT 类别
	NATType() types.NATType

	// Address 端点地址
	Address() types.NetworkAddress

	// Encode 写入规范编码
	Encode(w *codec.Writer)

	String() string

	sealed()
}

// Direct 公网可达端点
type Direct struct {
	Addr types.NetworkAddress
}

// Relayed 端口受限 NAT 后的端点
type Relayed struct {
	Addr  types.NetworkAddress
	Relay types.NetworkAddress
}

// Symmetric 对称 NAT 后的端点
type Symmetric struct {
	Addr  types.NetworkAddress
	Relay types.NetworkAddress
}

func (Direct) sealed()    {}
func (Relayed) sealed()   {}
func (Symmetric) sealed() {}

func (Direct) NATType() types.NATType    { return types.NATTypeDirect }
func (Relayed) NATType() types.NATType   { return types.NATTypeRelayed }
func (Symmetric) NATType() types.NATType { return types.NATTypeSymmetric }

func (e Direct) Address() types.NetworkAddress    { return e.Addr }
func (e Relayed) Address() types.NetworkAddress   { return e.Addr }
func (e Symmetric) Address() types.NetworkAddress { return e.Addr }

func (e Direct) String() string { return "direct/" + e.Addr.String() }
func (e Relayed) String() string {
	return fmt.Sprintf("relayed/%s via %s", e.Addr, e.Relay)
}
func (e Symmetric) String() string {
	return fmt.Sprintf("symmetric/%s via %s", e.Addr, e.Relay)
}

func (e Direct) Encode(w *codec.Writer) {
	w.Byte(byte(types.NATTypeDirect))
	EncodeAddress(w, e.Addr)
}

func (e Relayed) Encode(w *codec.Writer) {
	w.Byte(byte(types.NATTypeRelayed))
	EncodeAddress(w, e.Addr)
	EncodeAddress(w, e.Relay)
}

func (e Symmetric) Encode(w *codec.Writer) {
	w.Byte(byte(types.NATTypeSymmetric))
	EncodeAddress(w, e.Addr)
	EncodeAddress(w, e.Relay)
}

// Family 端点地址族
func Family(e Endpoint) types.IPFamily {
	return e.Address().Family()
}

// RelayOf 返回 Relayed/Symmetric 端点的中继地址
func RelayOf(e Endpoint) (types.NetworkAddress, bool) {
	switch v := e.(type) {
	case Relayed:
		return v.Relay, true
	case Symmetric:
		return v.Relay, true
	case Direct:
		return types.NetworkAddress{}, false
	}
	return types.NetworkAddress{}, false
}

// Score 可达性评分：NAT 类别优先（Direct > Relayed > Symmetric），同类别下 IPv6 > IPv4
func Score(e Endpoint) int {
	var nat int
	switch e.(type) {
	case Direct:
		nat = 3
	case Relayed:
		nat = 2
	case Symmetric:
		nat = 1
	}
	family := 0
	if Family(e) == types.IPv6 {
		family = 1
	}
	return nat*2 + family
}

// BestScore 一组端点中的最高评分，空集合为 0
func BestScore(eps []Endpoint) int {
	best := 0
	for _, e := range eps {
		if s := Score(e); s > best {
			best = s
		}
	}
	return best
}

// Bytes 端点的规范编码
func Bytes(e Endpoint) []byte {
	w := codec.NewWriter(48)
	e.Encode(w)
	return w.Bytes()
}

// Checksum 编码的哈希
func Checksum(e Endpoint) keys.Hash {
	return keys.Sum(Bytes(e))
}

// Equal 两个端点编码的校验和相同即相等
func Equal(a, b Endpoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return Checksum(a) == Checksum(b)
}

// Decode 读取一个端点，失败时记录在 r 上并返回 nil
func Decode(r *codec.Reader) Endpoint {
	nat := types.NATType(r.Byte())
	addr := DecodeAddress(r)
	if r.Err() != nil {
		return nil
	}

	switch nat {
	case types.NATTypeDirect:
		return Direct{Addr: addr}
	case types.NATTypeRelayed, types.NATTypeSymmetric:
		relay := DecodeAddress(r)
		if r.Err() != nil {
			return nil
		}
		if relay.Family() != addr.Family() {
			r.Fail(ErrRelayFamily)
			return nil
		}
		if nat == types.NATTypeRelayed {
			return Relayed{Addr: addr, Relay: relay}
		}
		return Symmetric{Addr: addr, Relay: relay}
	default:
		r.Fail(fmt.Errorf("%w: %d", ErrUnknownNATType, nat))
		return nil
	}
}

// SortByScore 按评分降序稳定排序
func SortByScore(eps []Endpoint) {
	sort.SliceStable(eps, func(i, j int) bool {
		return Score(eps[i]) > Score(eps[j])
	})
}
