package keys

import "errors"

var (
	// ErrInvalidPrivateKey 私钥长度错误或为零
	ErrInvalidPrivateKey = errors.New("keys: invalid private key")

	// ErrInvalidPublicKey 公钥无法解析
	ErrInvalidPublicKey = errors.New("keys: invalid public key")

	// ErrInvalidSignature 签名格式错误或无法恢复公钥
	ErrInvalidSignature = errors.New("keys: invalid signature")

	// ErrKeyNotFound 密钥文件不存在
	ErrKeyNotFound = errors.New("keys: key file not found")

	// ErrInvalidPEM 密钥文件不是预期的 PEM 块
	ErrInvalidPEM = errors.New("keys: invalid PEM data")
)
