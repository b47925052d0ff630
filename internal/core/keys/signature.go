package keys

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	// SignatureSize R||S 字节数
	SignatureSize = 64

	// compactMagic 紧凑签名首字节的偏移，压缩公钥再加 4
	compactMagic = 27 + 4
)

// Signature 64 字节 R||S 签名，用于消息信封
type Signature [SignatureSize]byte

// RSignature 可恢复签名，用于节点记录
type RSignature struct {
	RecoveryBit uint8
	Signature   Signature
}

// IsZero 是否为零值
func (s RSignature) IsZero() bool {
	return s == RSignature{}
}

// RecoverPublicKey 从可恢复签名与哈希恢复签名者公钥
func RecoverPublicKey(sig RSignature, hash Hash) (PublicKey, error) {
	if sig.RecoveryBit > 3 {
		return PublicKey{}, ErrInvalidSignature
	}
	compact := make([]byte, 1+SignatureSize)
	compact[0] = compactMagic + sig.RecoveryBit
	copy(compact[1:], sig.Signature[:])

	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return PublicKey{}, ErrInvalidSignature
	}
	var out PublicKey
	copy(out[:], pub.SerializeCompressed())
	return out, nil
}

// VerifyRecoverable 恢复出的公钥是否等于 pub
func VerifyRecoverable(sig RSignature, hash Hash, pub PublicKey) bool {
	recovered, err := RecoverPublicKey(sig, hash)
	return err == nil && recovered == pub
}

// Verify 校验普通 64 字节签名
func Verify(sig Signature, hash Hash, pub PublicKey) bool {
	key, err := secp256k1.ParsePubKey(pub[:])
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsZero() {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash[:], key)
}
