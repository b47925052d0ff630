package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              DiceAddress - 节点短身份
// ============================================================================

// DiceAddressSize DiceAddress 字节数
const DiceAddressSize = 20

// DiceAddress 节点短身份
//
// 由压缩公钥的哈希截断得到，同时也是 Kademlia 路由键。
// 外部表示为 Base58。
type DiceAddress [DiceAddressSize]byte

// String 返回 Base58 表示
func (a DiceAddress) String() string {
	return base58.Encode(a[:])
}

// ShortString 日志用的短标识（Base58 前 8 个字符）
func (a DiceAddress) ShortString() string {
	s := a.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Hex 十六进制表示，用作缓存键
func (a DiceAddress) Hex() string {
	return hex.EncodeToString(a[:])
}

// IsZero 是否为零值
func (a DiceAddress) IsZero() bool {
	return a == DiceAddress{}
}

// Bytes 返回字节切片副本
func (a DiceAddress) Bytes() []byte {
	b := make([]byte, DiceAddressSize)
	copy(b, a[:])
	return b
}

// DiceAddressFromBytes 从 20 字节构造
func DiceAddressFromBytes(b []byte) (DiceAddress, error) {
	var a DiceAddress
	if len(b) != DiceAddressSize {
		return a, fmt.Errorf("%w: got %d bytes", ErrInvalidDiceAddress, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseDiceAddress 解析 Base58 表示
func ParseDiceAddress(s string) (DiceAddress, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return DiceAddress{}, fmt.Errorf("%w: %v", ErrInvalidDiceAddress, err)
	}
	return DiceAddressFromBytes(b)
}

// ============================================================================
//                              TransactionID - 请求关联 ID
// ============================================================================

// TransactionIDSize TransactionID 字节数
const TransactionIDSize = 16

// TransactionID 请求/响应关联用的随机 ID
type TransactionID [TransactionIDSize]byte

// NewTransactionID 生成 16 字节全随机的 TransactionID
func NewTransactionID() TransactionID {
	var t TransactionID
	if _, err := rand.Read(t[:]); err != nil {
		panic(fmt.Sprintf("types: read random transaction id: %v", err))
	}
	return t
}

// Hex 十六进制表示，作为等待表的键
func (t TransactionID) Hex() string {
	return hex.EncodeToString(t[:])
}

// String 同 Hex
func (t TransactionID) String() string {
	return t.Hex()
}

// TransactionIDFromBytes 从 16 字节构造
func TransactionIDFromBytes(b []byte) (TransactionID, error) {
	var t TransactionID
	if len(b) != TransactionIDSize {
		return t, fmt.Errorf("%w: got %d bytes", ErrInvalidTransactionID, len(b))
	}
	copy(t[:], b)
	return t, nil
}
