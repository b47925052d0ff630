// Package codec 提供协议字节布局的读写原语
//
// 整数（sequenceNumber、generation、长度前缀）使用 go-varint 的最短无符号变长编码；
// 密钥、签名、哈希、ID 等字节块按固定宽度直接写入（33/64/32/16/20）。
// Reader 采用粘滞错误：第一次失败之后的读取全部返回零值，调用方最后检查 Err()。
package codec
