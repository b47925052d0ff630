package stun

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/pion/stun"

	"github.com/dep2p/go-dice/pkg/types"
)

var (
	// ErrNotBindingResponse 不是 Binding 成功响应
	ErrNotBindingResponse = errors.New("stun: not a binding success response")

	// ErrNoMappedAddress 响应中没有映射地址
	ErrNoMappedAddress = errors.New("stun: no mapped address")
)

// TransactionID STUN 事务 ID
type TransactionID [stun.TransactionIDSize]byte

// String 十六进制表示
func (id TransactionID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// IsMessage 判断数据报是否为 STUN 消息
func IsMessage(b []byte) bool {
	return stun.IsMessage(b)
}

// NewBindingRequest 构造 Binding 请求
func NewBindingRequest() (TransactionID, []byte, error) {
	m, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	if err != nil {
		return TransactionID{}, nil, err
	}
	return TransactionID(m.TransactionID), m.Raw, nil
}

// ParseBindingResponse 解析 Binding 成功响应，返回事务 ID 与映射地址
func ParseBindingResponse(b []byte) (TransactionID, types.NetworkAddress, error) {
	m := &stun.Message{Raw: append([]byte(nil), b...)}
	if err := m.Decode(); err != nil {
		return TransactionID{}, types.NetworkAddress{}, err
	}
	id := TransactionID(m.TransactionID)
	if m.Type != stun.BindingSuccess {
		return id, types.NetworkAddress{}, ErrNotBindingResponse
	}

	var xor stun.XORMappedAddress
	if err := xor.GetFrom(m); err == nil {
		addr, err := toNetworkAddress(xor.IP, xor.Port)
		return id, addr, err
	}
	// RFC 3489 服务器只带 MAPPED-ADDRESS
	var mapped stun.MappedAddress
	if err := mapped.GetFrom(m); err == nil {
		addr, err := toNetworkAddress(mapped.IP, mapped.Port)
		return id, addr, err
	}
	return id, types.NetworkAddress{}, ErrNoMappedAddress
}

func toNetworkAddress(ip []byte, port int) (types.NetworkAddress, error) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok || port <= 0 || port > 0xffff {
		return types.NetworkAddress{}, ErrNoMappedAddress
	}
	return types.NewNetworkAddress(a, uint16(port)), nil
}

// NewBindingResponse 构造携带 XOR-MAPPED-ADDRESS 的成功响应（测试用的 STUN 服务器）
func NewBindingResponse(id TransactionID, observed types.NetworkAddress) ([]byte, error) {
	m, err := stun.Build(
		stun.NewTransactionIDSetter([stun.TransactionIDSize]byte(id)),
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: observed.IP.AsSlice(), Port: int(observed.Port)},
		stun.Fingerprint,
	)
	if err != nil {
		return nil, err
	}
	return m.Raw, nil
}

// IsBindingRequest 判断是否为 Binding 请求并返回事务 ID
func IsBindingRequest(b []byte) (TransactionID, bool) {
	m := &stun.Message{Raw: append([]byte(nil), b...)}
	if err := m.Decode(); err != nil {
		return TransactionID{}, false
	}
	return TransactionID(m.TransactionID), m.Type == stun.BindingRequest
}
