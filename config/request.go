package config

import (
	"errors"
	"time"
)

// RequestConfig 请求配置
type RequestConfig struct {
	// Timeout 等待应答的默认超时
	Timeout Duration `json:"timeout"`
}

// DefaultRequestConfig 默认 3 秒
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{Timeout: Duration(3 * time.Second)}
}

// Validate 校验
func (c RequestConfig) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("config: request: timeout must be positive")
	}
	return nil
}
