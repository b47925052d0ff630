package config

import "errors"

// RelayConfig 作为中继时对每个发送方的转发限速
type RelayConfig struct {
	// Rate 每秒令牌数
	Rate float64 `json:"rate"`

	// Burst 令牌桶容量
	Burst int `json:"burst"`
}

// DefaultRelayConfig 默认值
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{Rate: 20, Burst: 40}
}

// Validate 校验
func (c RelayConfig) Validate() error {
	if c.Rate <= 0 || c.Burst <= 0 {
		return errors.New("config: relay: rate and burst must be positive")
	}
	return nil
}
