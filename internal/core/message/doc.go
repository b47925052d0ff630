// Package message 定义协议消息集合与信封编码
//
// 信封布局：
//
//	magic(4) | version(1) | blob(nodeRecord) | body | signature(64)
//
// signature 覆盖 blake3(nodeRecord ∥ body)，用 nodeRecord 恢复出的公钥验证。
// body 以 uvarint 标签开头，之后是各变体的字段。
//
// Body 是封闭的和类型，分发处的类型分支应覆盖全部变体。
package message
