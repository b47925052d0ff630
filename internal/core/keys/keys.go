package keys

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/dep2p/go-dice/pkg/types"
)

// PrivateKeySize 私钥字节数
const PrivateKeySize = 32

// Keys 节点密钥对，身份字段在构造时一次算好
type Keys struct {
	priv    *secp256k1.PrivateKey
	pub     PublicKey
	address types.DiceAddress
}

// Generate 生成新的随机密钥对
func Generate() (*Keys, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate: %w", err)
	}
	return fromPrivate(priv), nil
}

// FromPrivateKey 从 32 字节私钥构造
func FromPrivateKey(b []byte) (*Keys, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPrivateKey, len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	if priv.Key.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return fromPrivate(priv), nil
}

func fromPrivate(priv *secp256k1.PrivateKey) *Keys {
	k := &Keys{priv: priv}
	copy(k.pub[:], priv.PubKey().SerializeCompressed())
	k.address = k.pub.DiceAddress()
	return k
}

// PrivateKey 返回私钥字节
func (k *Keys) PrivateKey() []byte {
	return k.priv.Serialize()
}

// PublicKey 返回压缩公钥
func (k *Keys) PublicKey() PublicKey {
	return k.pub
}

// DiceAddress 返回短身份
func (k *Keys) DiceAddress() types.DiceAddress {
	return k.address
}

// SignRecoverable 对哈希做可恢复签名
func (k *Keys) SignRecoverable(hash Hash) RSignature {
	compact := ecdsa.SignCompact(k.priv, hash[:], true)
	var sig RSignature
	sig.RecoveryBit = compact[0] - compactMagic
	copy(sig.Signature[:], compact[1:])
	return sig
}

// Sign 对哈希做普通签名
func (k *Keys) Sign(hash Hash) Signature {
	return k.SignRecoverable(hash).Signature
}
