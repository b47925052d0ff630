package keys

import (
	"encoding/hex"

	"lukechampine.com/blake3"

	"github.com/dep2p/go-dice/pkg/types"
)

// HashSize 哈希字节数
const HashSize = 32

// Hash blake3-256 摘要，用作记录哈希、校验和与签名输入
type Hash [HashSize]byte

// Sum 计算 parts 依次拼接后的哈希
func Sum(parts ...[]byte) Hash {
	if len(parts) == 1 {
		return blake3.Sum256(parts[0])
	}
	h := blake3.New(HashSize, nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// Hex 十六进制表示
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// PublicKeySize 压缩公钥字节数
const PublicKeySize = 33

// PublicKey 压缩格式的 secp256k1 公钥
type PublicKey [PublicKeySize]byte

// DiceAddress 由公钥派生短身份
func (p PublicKey) DiceAddress() types.DiceAddress {
	h := blake3.Sum256(p[:])
	var a types.DiceAddress
	copy(a[:], h[:types.DiceAddressSize])
	return a
}

// IsZero 是否为零值
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}
