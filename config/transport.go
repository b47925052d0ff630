package config

import (
	"errors"
	"fmt"
	"net/netip"
)

// TransportConfig UDP 传输配置
type TransportConfig struct {
	// ListenAddrs 监听地址，每个地址族至多一个
	ListenAddrs []string `json:"listen_addrs"`

	// QueueSize 入站队列长度
	QueueSize int `json:"queue_size,omitempty"`
}

// DefaultTransportConfig 默认监听 IPv4 任意地址的 4000 端口
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddrs: []string{"0.0.0.0:4000"},
		QueueSize:   1024,
	}
}

// Validate 校验
func (c TransportConfig) Validate() error {
	if len(c.ListenAddrs) == 0 {
		return errors.New("config: transport: at least one listen address required")
	}
	seen := make(map[bool]bool)
	for _, s := range c.ListenAddrs {
		ap, err := netip.ParseAddrPort(s)
		if err != nil {
			return fmt.Errorf("config: transport: listen address %q: %w", s, err)
		}
		v4 := ap.Addr().Unmap().Is4()
		if seen[v4] {
			return fmt.Errorf("config: transport: more than one listen address for the family of %q", s)
		}
		seen[v4] = true
	}
	if c.QueueSize < 0 {
		return errors.New("config: transport: queue size must not be negative")
	}
	return nil
}
