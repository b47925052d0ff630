// Package socket 实现单个节点的协议引擎
//
// Socket 拥有本节点的密钥、记录、路由表、缓存与 UDP 传输，负责：
//
//   - 请求/应答关联：每个请求携带随机 TransactionID，AwaitResponse 在超时、
//     取消或引擎关闭时以 *CorrelationError 失败
//   - 入站分发：验证签名、收录记录、按消息标签应答或转发
//   - 穿透执行：按 endpoint.Plan 的结果直发、打洞、reveal 或经中继转发
//   - Kademlia 迭代查找
//   - 引导与 NAT 类别探测（NAT4 -> NAT3 -> NAT1），以及两类周期健康检查
//
// 生命周期：
//
//	s, _ := socket.New(keys, transport, socket.DefaultConfig())
//	_ = s.Open(ctx)
//	defer s.Close()
package socket
