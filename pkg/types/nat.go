package types

import (
	"fmt"
	"strings"
)

// NATType 节点的可达性类别
//
// 取值沿用 NAT1/NAT3/NAT4 的编号。
type NATType uint8

const (
	// NATTypeUnknown 尚未探测
	NATTypeUnknown NATType = 0

	// NATTypeDirect 公网可直接访问（NAT1），可以为其他节点做中继
	NATTypeDirect NATType = 1

	// NATTypeRelayed 端口受限锥形 NAT（NAT3），需要经中继打洞后直连
	NATTypeRelayed NATType = 3

	// NATTypeSymmetric 对称 NAT（NAT4），每个对端的映射地址都不同，需要 reveal
	NATTypeSymmetric NATType = 4
)

// String 返回类型名称
func (t NATType) String() string {
	switch t {
	case NATTypeDirect:
		return "direct"
	case NATTypeRelayed:
		return "relayed"
	case NATTypeSymmetric:
		return "symmetric"
	case NATTypeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("nat(%d)", uint8(t))
	}
}

// Valid 是否为三种已知类别之一
func (t NATType) Valid() bool {
	return t == NATTypeDirect || t == NATTypeRelayed || t == NATTypeSymmetric
}

// ParseNATType 解析 "direct"/"relayed"/"symmetric"（也接受 nat1/nat3/nat4）
func ParseNATType(s string) (NATType, error) {
	switch strings.ToLower(s) {
	case "direct", "nat1":
		return NATTypeDirect, nil
	case "relayed", "nat3":
		return NATTypeRelayed, nil
	case "symmetric", "nat4":
		return NATTypeSymmetric, nil
	}
	return NATTypeUnknown, fmt.Errorf("%w: %q", ErrUnknownNATType, s)
}
