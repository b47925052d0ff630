package endpoint

import "errors"

var (
	// ErrUnknownNATType 编码中的 NAT 类型未知
	ErrUnknownNATType = errors.New("endpoint: unknown nat type")

	// ErrInvalidAddress 地址非法
	ErrInvalidAddress = errors.New("endpoint: invalid address")

	// ErrRelayFamily 中继地址与端点地址族不同
	ErrRelayFamily = errors.New("endpoint: relay family mismatch")
)
