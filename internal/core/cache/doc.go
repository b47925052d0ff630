// Package cache 提供带 TTL 的有界缓存
//
// 条目按插入顺序排列（覆盖写会把条目移到最新位置）：
//   - 读时惰性过期：Get/Has 遇到过期条目直接删除
//   - 写时主动淘汰：Set 先从最旧一端清理过期条目，再按上限淘汰最旧条目
//
// 每个 Socket 持有若干独立配置的实例：地址池、打洞去重、联系去重、reveal 结果。
package cache
