package transport

import (
	"context"

	"github.com/dep2p/go-dice/pkg/types"
)

// Packet 收到的数据报
type Packet struct {
	Data []byte
	From types.NetworkAddress
}

// Transport 数据报传输
type Transport interface {
	// Send 发送一个数据报，尽力而为
	Send(ctx context.Context, data []byte, to types.NetworkAddress) error

	// Packets 入站数据报；传输关闭后通道关闭
	Packets() <-chan Packet

	// LocalAddrs 本地监听地址
	LocalAddrs() []types.NetworkAddress

	// Close 关闭传输
	Close() error
}
