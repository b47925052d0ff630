// Package transport 定义数据报传输抽象与 UDP 实现
//
// Socket 只依赖两个原语：
//
//	Send(ctx, bytes, address) error
//	Packets() <-chan Packet          // (bytes, remoteAddress)
//
// UDP 为每个地址族监听一个 socket，所有出站数据共用它们。
// 子包 memnet 提供带 NAT 行为模拟的内存网络，供端到端测试使用。
package transport
