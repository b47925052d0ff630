package record

import "errors"

var (
	// ErrTooManyEndpoints 端点数超过上限
	ErrTooManyEndpoints = errors.New("record: too many endpoints")

	// ErrNilEndpoint 端点列表中有 nil
	ErrNilEndpoint = errors.New("record: nil endpoint")

	// ErrInvalidSignature 签名无法恢复出公钥
	ErrInvalidSignature = errors.New("record: invalid signature")

	// ErrIdentityMismatch 用于更新的密钥与记录身份不同
	ErrIdentityMismatch = errors.New("record: keys do not match record identity")

	// ErrMalformed 编码无法解析
	ErrMalformed = errors.New("record: malformed encoding")
)
