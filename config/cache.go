package config

import (
	"errors"
	"time"
)

// CacheConfig 内部缓存配置，作用于地址池、联系记录、打洞与 reveal 结果等全部缓存
type CacheConfig struct {
	TTL   Duration `json:"ttl"`
	Limit int      `json:"limit"`
}

// DefaultCacheConfig 默认值
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: Duration(time.Minute), Limit: 1024}
}

// Validate 校验
func (c CacheConfig) Validate() error {
	if c.TTL < 0 {
		return errors.New("config: cache: ttl must not be negative")
	}
	if c.Limit <= 0 {
		return errors.New("config: cache: limit must be positive")
	}
	return nil
}
