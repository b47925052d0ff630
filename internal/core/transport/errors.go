package transport

import "errors"

var (
	// ErrClosed 传输已关闭
	ErrClosed = errors.New("transport: closed")

	// ErrNoListener 没有该地址族的监听 socket
	ErrNoListener = errors.New("transport: no listener for address family")

	// ErrInvalidAddress 目标地址无效
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrNoListenAddrs 没有配置监听地址
	ErrNoListenAddrs = errors.New("transport: no listen addresses")
)
