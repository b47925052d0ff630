// Package record 实现自证明、带版本的节点记录
//
// 一条记录声明一个节点当前的端点列表，并由该节点的私钥做可恢复签名：
//
//	body  = uvarint(sequenceNumber) | uvarint(generation) | bool(isDisabled) | uvarint(n) | endpoint * n
//	bytes = body | recoveryBit(1) | signature(64)
//
// 记录的身份是从签名恢复出的公钥派生的 DiceAddress，记录本身不携带公钥。
// 记录创建后不可变；Update 总是返回一条新记录（内容不变时返回原记录）。
//
// 同一身份的两条记录按 (generation, sequenceNumber) 全序比较，
// 两者都相同而内容不同时按校验和比较。
package record
