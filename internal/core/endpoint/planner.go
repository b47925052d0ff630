package endpoint

import (
	"github.com/dep2p/go-dice/pkg/types"
)

// ============================================================================
//                              Arc - 端点组合
// ============================================================================

// Arc 一次通信使用的 (source, target) 端点组合
type Arc struct {
	Source Endpoint
	Target Endpoint
}

// Filter 端点白名单，空列表表示不限制
type Filter struct {
	Families []types.IPFamily
	NATTypes []types.NATType
}

// Allows 端点是否通过白名单
func (f Filter) Allows(e Endpoint) bool {
	if len(f.Families) > 0 && !contains(f.Families, Family(e)) {
		return false
	}
	if len(f.NATTypes) > 0 && !contains(f.NATTypes, e.NATType()) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// FindArc 选择第一个同地址族的端点组合
//
// 以 source 的端点顺序为准：对每个 source 端点依次尝试 target 端点，
// 不做全局评分。没有同族组合或全部被白名单排除时返回 false。
func FindArc(source, target []Endpoint, f Filter) (Arc, bool) {
	for _, s := range source {
		if !f.Allows(s) {
			continue
		}
		for _, t := range target {
			if !f.Allows(t) {
				continue
			}
			if Family(s) == Family(t) {
				return Arc{Source: s, Target: t}, true
			}
		}
	}
	return Arc{}, false
}

// ============================================================================
//                              Action - 穿透方式
// ============================================================================

// Action 穿透方式
type Action uint8

const (
	// ActionDirect 直接发往目标地址
	ActionDirect Action = iota + 1

	// ActionPunch 先经目标中继打洞，再直连
	ActionPunch

	// ActionReveal 经目标中继获取目标为本端分配的地址，再发往该地址
	ActionReveal

	// ActionRelay 通过第三方 Direct 节点转发
	ActionRelay
)

func (a Action) String() string {
	switch a {
	case ActionDirect:
		return "direct"
	case ActionPunch:
		return "punch"
	case ActionReveal:
		return "reveal"
	case ActionRelay:
		return "relay"
	default:
		return "unknown"
	}
}

// Plan 根据两端 NAT 类别决定穿透方式
//
//	target     source           action
//	Direct     任意             direct
//	Relayed    Symmetric        relay
//	Relayed    Direct/Relayed   punch
//	Symmetric  Direct           reveal
//	Symmetric  其他             relay
//
// 地址族不同时总是 relay。source 为 nil（本端尚未探测）按 Symmetric 处理。
func Plan(source, target Endpoint) Action {
	if source != nil && Family(source) != Family(target) {
		return ActionRelay
	}

	switch target.(type) {
	case Direct:
		return ActionDirect
	case Relayed:
		switch source.(type) {
		case Direct, Relayed:
			return ActionPunch
		default:
			return ActionRelay
		}
	case Symmetric:
		if _, ok := source.(Direct); ok {
			return ActionReveal
		}
		return ActionRelay
	}
	return ActionRelay
}
