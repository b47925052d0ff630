package eventbus

import (
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

// EvtOpen 引擎已打开
type EvtOpen struct {
	Node *record.Node
}

// EvtClose 引擎已关闭
type EvtClose struct{}

// EvtNodeAdded 路由表加入节点
type EvtNodeAdded struct {
	Node *record.Node
}

// EvtNodeRemoved 路由表移除节点
type EvtNodeRemoved struct {
	Node *record.Node
}

// EvtNodeUpdated 路由表中的节点记录被更新的版本替换
type EvtNodeUpdated struct {
	Old *record.Node
	New *record.Node
}

// EvtData 收到 putData 载荷
type EvtData struct {
	// From 发送方记录
	From *record.Node
	// Remote 数据报的直接来源；经中继到达时为中继地址
	Remote  types.NetworkAddress
	Payload []byte
	// Relayed 是否经中继到达
	Relayed bool
}

// EvtError 后台流程失败（健康检查、重新引导）
type EvtError struct {
	Op  string
	Err error
}

// EvtLocalUpdated 本节点记录被重新签名
type EvtLocalUpdated struct {
	Node *record.Node
}
