// Package table 实现覆盖网络路由表
//
// 经典 Kademlia k 桶结构：以本地 DiceAddress 为原点，按与节点身份的
// 共同前缀长度（XOR 距离的深度）分入 160 个桶；桶内按可达性评分降序排列，
// 桶满时只有评分更高的新节点才能挤掉评分最低的条目。
//
// 路由表只接受可路由的记录（未禁用且至少有一个端点），
// 同一身份的记录只会被严格更新的记录替换。
package table
