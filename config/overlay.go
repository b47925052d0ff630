package config

import "errors"

// OverlayConfig 路由表与查找配置
type OverlayConfig struct {
	// BucketSize k-bucket 宽度
	BucketSize int `json:"bucket_size"`

	// LookupConcurrency 并发查找链数
	LookupConcurrency int `json:"lookup_concurrency"`

	// LookupResultSize 查找保留的最近节点数
	LookupResultSize int `json:"lookup_result_size"`

	// BootstrapPeers 引导节点地址（ip:port）
	BootstrapPeers []string `json:"bootstrap_peers,omitempty"`

	// AutoBootstrap 启动后自动引导
	AutoBootstrap bool `json:"auto_bootstrap"`
}

// DefaultOverlayConfig 默认值
func DefaultOverlayConfig() OverlayConfig {
	return OverlayConfig{
		BucketSize:        20,
		LookupConcurrency: 3,
		LookupResultSize:  20,
		AutoBootstrap:     true,
	}
}

// Validate 校验
func (c OverlayConfig) Validate() error {
	if c.BucketSize <= 0 {
		return errors.New("config: overlay: bucket_size must be positive")
	}
	if c.LookupConcurrency <= 0 || c.LookupResultSize <= 0 {
		return errors.New("config: overlay: lookup concurrency and result size must be positive")
	}
	return validateAddrs("overlay: bootstrap_peers", c.BootstrapPeers)
}
