package config

import (
	"fmt"
	"net"
)

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool `json:"enabled"`

	// ListenAddr /metrics 的 HTTP 监听地址，为空时不对外提供
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 默认收集指标但不监听
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true}
}

// Validate 校验
func (c MetricsConfig) Validate() error {
	if c.ListenAddr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("config: metrics: listen_addr %q: %w", c.ListenAddr, err)
	}
	return nil
}
