// Package stun 在节点自己的 socket 上构造与解析 STUN Binding 消息
//
// 引导时若只有一个直连节点可做反射，改用 STUN 服务器观察第二个外部地址。
// 请求和响应都经节点主 socket 收发，因此观察到的映射与节点自身流量一致；
// 入站数据报用 IsMessage 与 DICE 消息分流。
package stun
