// Package types 定义 dice 的基础值类型
//
// 这是最底层的包，不依赖任何其他 dice 内部包，所有类型都是可比较的值类型。
//
// # 文件组织
//
//   - ids.go     - DiceAddress（节点短身份）、TransactionID（请求关联 ID）
//   - address.go - IPFamily、NetworkAddress
//   - nat.go     - NATType（Direct / Relayed / Symmetric）
//   - errors.go  - 公共错误
package types
