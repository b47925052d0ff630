package types

import "errors"

var (
	// ErrInvalidDiceAddress DiceAddress 长度或编码错误
	ErrInvalidDiceAddress = errors.New("types: invalid dice address")

	// ErrInvalidTransactionID TransactionID 长度错误
	ErrInvalidTransactionID = errors.New("types: invalid transaction id")

	// ErrInvalidNetworkAddress 网络地址无法解析或不是单播地址
	ErrInvalidNetworkAddress = errors.New("types: invalid network address")

	// ErrUnknownIPFamily 未知的地址族
	ErrUnknownIPFamily = errors.New("types: unknown ip family")

	// ErrUnknownNATType 未知的 NAT 类型
	ErrUnknownNATType = errors.New("types: unknown nat type")
)
