// Package endpoint 定义节点端点与 NAT 穿透规划
//
// Endpoint 是封闭的和类型，只有三个变体：
//
//	Direct    {Addr}          公网可达，可以为其他节点中继
//	Relayed   {Addr, Relay}   先经 Relay 打洞（punch），再直连 Addr
//	Symmetric {Addr, Relay}   Addr 只对 Relay 有效，其他对端需经 Relay 做 reveal
//
// Relay 总是一个 Direct 节点的地址。
//
// FindArc 在两组端点中挑选同地址族的 (source, target) 组合，
// Plan 根据两端 NAT 类别决定 direct / punch / reveal / relay。
package endpoint
