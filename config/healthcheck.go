package config

import (
	"errors"
	"time"
)

// HealthcheckConfig 健康检查配置
type HealthcheckConfig struct {
	// NodeInterval 本节点外部地址复测周期，0 为关闭
	NodeInterval Duration `json:"node_interval"`

	// OverlayInterval 路由表存活检查周期，0 为关闭
	OverlayInterval Duration `json:"overlay_interval"`

	// Concurrency 覆盖网络检查的并发 ping 数
	Concurrency int `json:"concurrency"`

	// FailureThreshold 连续多少次节点检查失败后重新引导
	FailureThreshold int `json:"failure_threshold"`
}

// DefaultHealthcheckConfig 默认值
func DefaultHealthcheckConfig() HealthcheckConfig {
	return HealthcheckConfig{
		NodeInterval:     Duration(time.Minute),
		OverlayInterval:  Duration(30 * time.Second),
		Concurrency:      8,
		FailureThreshold: 3,
	}
}

// Validate 校验
func (c HealthcheckConfig) Validate() error {
	if c.NodeInterval < 0 || c.OverlayInterval < 0 {
		return errors.New("config: healthcheck: intervals must not be negative")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: healthcheck: concurrency must be positive")
	}
	if c.FailureThreshold <= 0 {
		return errors.New("config: healthcheck: failure_threshold must be positive")
	}
	return nil
}
