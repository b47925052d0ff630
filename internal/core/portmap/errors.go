package portmap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoGateway 未发现支持映射的网关
	ErrNoGateway = errors.New("portmap: no gateway found")

	// ErrClosed 映射器已关闭
	ErrClosed = errors.New("portmap: closed")

	// ErrInvalidExternalIP 网关返回的外部地址无效
	ErrInvalidExternalIP = errors.New("portmap: invalid external ip")
)

// MappingError 端口映射失败
type MappingError struct {
	Protocol string
	Port     uint16
	Cause    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("portmap: %s mapping for port %d failed: %v", e.Protocol, e.Port, e.Cause)
}

func (e *MappingError) Unwrap() error {
	return e.Cause
}
