package dice

import (
	"errors"

	"github.com/dep2p/go-dice/internal/core/socket"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("dice: peer not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("dice: peer already started")

	// ErrPeerClosed 节点已关闭
	ErrPeerClosed = errors.New("dice: peer closed")

	// ────────────────────────────────────────────────────────────────────────
	// 请求关联错误
	// ────────────────────────────────────────────────────────────────────────

	ErrTimeout = socket.ErrTimeout
	ErrAborted = socket.ErrAborted
	ErrClosed  = socket.ErrClosed

	// ────────────────────────────────────────────────────────────────────────
	// 穿透与查找错误
	// ────────────────────────────────────────────────────────────────────────

	ErrNoArc             = socket.ErrNoArc
	ErrNoRelay           = socket.ErrNoRelay
	ErrNodeNotFound      = socket.ErrNodeNotFound
	ErrNoPeers           = socket.ErrNoPeers
	ErrPayloadTooLarge   = socket.ErrPayloadTooLarge
	ErrCapabilityChanged = socket.ErrCapabilityChanged
)

type (
	// CorrelationError 等待应答失败，可与 ErrTimeout、ErrAborted、ErrClosed 比较
	CorrelationError = socket.CorrelationError

	// ResponseError 对端以失败状态码应答
	ResponseError = socket.ResponseError

	// TraversalError 穿透某个目标失败
	TraversalError = socket.TraversalError
)
