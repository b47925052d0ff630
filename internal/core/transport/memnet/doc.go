// Package memnet 是带 NAT 行为模拟的内存数据报网络
//
// 三种主机：
//
//	Public          公网地址，任何人都可以发给它
//	PortRestricted  端口受限锥形 NAT：外部映射端口固定，只接收它发送过的远端地址的数据
//	Symmetric       对称 NAT：每个目的地址分配一个新的外部端口，该端口只接收那个目的地址的数据
//
// 投递是同步的：Send 返回前数据报已进入接收方队列，或因 NAT 规则被丢弃。
package memnet
