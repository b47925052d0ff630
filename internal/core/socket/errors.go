package socket

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-dice/internal/core/message"
	"github.com/dep2p/go-dice/pkg/types"
)

var (
	// ErrNotOpen 引擎未打开
	ErrNotOpen = errors.New("socket: not open")

	// ErrAlreadyOpen 引擎已打开或已关闭，不能再次打开
	ErrAlreadyOpen = errors.New("socket: already opened")

	// ErrClosed 引擎关闭时仍在等待的请求
	ErrClosed = errors.New("socket: closed")

	// ErrTimeout 等待应答超时
	ErrTimeout = errors.New("socket: request timed out")

	// ErrAborted 等待被调用方取消
	ErrAborted = errors.New("socket: request aborted")

	// ErrDuplicateTransaction 同一 TransactionID 已有等待者
	ErrDuplicateTransaction = errors.New("socket: transaction already pending")

	// ErrNoArc 两端没有可用的端点组合
	ErrNoArc = errors.New("socket: no usable arc")

	// ErrNoRelay 找不到可以转发的中继
	ErrNoRelay = errors.New("socket: no relay available")

	// ErrNodeNotFound 查找不到目标身份
	ErrNodeNotFound = errors.New("socket: node not found")

	// ErrNoPeers 路由表与引导集合都为空
	ErrNoPeers = errors.New("socket: no peers to contact")

	// ErrNoReflector 没有可用于观察外部地址的节点
	ErrNoReflector = errors.New("socket: no reflector available")

	// ErrCapabilityChanged 实测的外部地址与已发布的端点不一致
	ErrCapabilityChanged = errors.New("socket: announced endpoint no longer matches")

	// ErrPayloadTooLarge 数据超过单条消息上限
	ErrPayloadTooLarge = errors.New("socket: payload too large")
)

// CorrelationKind 关联等待失败的原因
type CorrelationKind uint8

const (
	// CorrelationTimeout 超时
	CorrelationTimeout CorrelationKind = iota + 1
	// CorrelationAborted 调用方取消
	CorrelationAborted
	// CorrelationClosed 引擎关闭
	CorrelationClosed
)

func (k CorrelationKind) String() string {
	switch k {
	case CorrelationTimeout:
		return "timeout"
	case CorrelationAborted:
		return "aborted"
	case CorrelationClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CorrelationError 等待应答失败
//
// errors.Is 可以与 ErrTimeout、ErrAborted、ErrClosed 比较。
type CorrelationError struct {
	Kind          CorrelationKind
	TransactionID types.TransactionID
	Cause         error
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("socket: request %s %s", e.TransactionID.Hex(), e.Kind)
}

func (e *CorrelationError) Is(target error) bool {
	switch e.Kind {
	case CorrelationTimeout:
		return target == ErrTimeout
	case CorrelationAborted:
		return target == ErrAborted
	case CorrelationClosed:
		return target == ErrClosed
	}
	return false
}

func (e *CorrelationError) Unwrap() error {
	return e.Cause
}

// ResponseError 对端以失败状态码应答
type ResponseError struct {
	Code message.Code
	From types.DiceAddress
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("socket: %s answered %s", e.From.ShortString(), e.Code)
}

// TraversalError 穿透某个目标失败
type TraversalError struct {
	Op     string
	Target types.DiceAddress
	Err    error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("socket: %s to %s: %v", e.Op, e.Target.ShortString(), e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}
