package config

import (
	"errors"
	"fmt"
	"time"
)

// ApplyPreset 按场景调整配置
//
//   - "client": 默认值
//   - "bootstrap": 公网长期运行的引导节点，强制 Direct，不做端口映射
//   - "mobile": 降低健康检查频率与并发
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	switch name {
	case "", "client":
		return nil
	case "bootstrap":
		cfg.NAT.ForceType = "direct"
		cfg.NAT.PortMapping = false
		cfg.Healthcheck.NodeInterval = 0
		cfg.Cache.Limit = 8192
		cfg.Relay.Rate = 50
		cfg.Relay.Burst = 100
		return nil
	case "mobile":
		cfg.Healthcheck.NodeInterval = Duration(5 * time.Minute)
		cfg.Healthcheck.OverlayInterval = Duration(2 * time.Minute)
		cfg.Healthcheck.Concurrency = 2
		cfg.Overlay.LookupConcurrency = 2
		cfg.Cache.Limit = 256
		return nil
	default:
		return fmt.Errorf("config: unknown preset %q", name)
	}
}
