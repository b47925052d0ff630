// Package keys 实现节点身份：secp256k1 密钥对、可恢复签名与哈希
//
// 身份派生链：
//
//	privateKey(32B) -> publicKey(33B 压缩点) -> DiceAddress(20B, blake3(publicKey) 截断)
//
// 可恢复签名 RSignature 让验证方从签名和消息哈希直接恢复出公钥，
// 因而节点记录和消息都不需要携带公钥。
package keys
