// Package portmap 通过网关协议在 NAT 上打开 UDP 端口映射
//
// 支持两种协议，按顺序尝试：
//   - UPnP IGD（v2 优先，回退 v1；WANIP 与 WANPPP 两种服务）
//   - NAT-PMP（默认网关）
//
// 映射成功后，外部地址作为候选地址交给引导流程验证，映射本身不决定 NAT 类型。
// 租约由 Mapper 后台续期，Close 时删除全部映射。
package portmap
