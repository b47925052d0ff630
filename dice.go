package dice

import (
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/internal/core/socket"
	"github.com/dep2p/go-dice/internal/core/table"
	"github.com/dep2p/go-dice/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "dice " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

type (
	// Address 节点身份
	Address = types.DiceAddress

	// NetworkAddress IP 与端口
	NetworkAddress = types.NetworkAddress

	// NATType 可达性类别
	NATType = types.NATType

	// Node 签名的节点记录
	Node = record.Node

	// Table 路由表
	Table = table.Table

	// State 节点状态
	State = socket.State
)

// 可达性类别
const (
	NATTypeUnknown   = types.NATTypeUnknown
	NATTypeDirect    = types.NATTypeDirect
	NATTypeRelayed   = types.NATTypeRelayed
	NATTypeSymmetric = types.NATTypeSymmetric
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

type (
	EvtOpen         = eventbus.EvtOpen
	EvtClose        = eventbus.EvtClose
	EvtNodeAdded    = eventbus.EvtNodeAdded
	EvtNodeRemoved  = eventbus.EvtNodeRemoved
	EvtNodeUpdated  = eventbus.EvtNodeUpdated
	EvtData         = eventbus.EvtData
	EvtError        = eventbus.EvtError
	EvtLocalUpdated = eventbus.EvtLocalUpdated

	// Subscription 事件订阅
	Subscription = eventbus.Subscription
)

// ParseAddress 解析节点身份的文本形式
func ParseAddress(s string) (Address, error) {
	return types.ParseDiceAddress(s)
}

// ParseNetworkAddress 解析 "ip:port"
func ParseNetworkAddress(s string) (NetworkAddress, error) {
	return types.ParseNetworkAddress(s)
}
