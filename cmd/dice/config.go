package main

import (
	"os"
	"strings"

	"github.com/dep2p/go-dice/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// 环境变量，均使用 DICE_ 前缀
const (
	envPrefix         = "DICE_"
	envConfig         = "CONFIG"
	envDataDir        = "DATA_DIR"
	envListen         = "LISTEN"
	envBootstrapPeers = "BOOTSTRAP_PEERS"
	envPublicAddr     = "PUBLIC_ADDR"
	envMetricsAddr    = "METRICS_ADDR"
)

// loadConfig 读取配置文件（可选）并应用环境变量覆盖
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值。
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = getenv(envConfig)
	}
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置
//
//   - DICE_DATA_DIR: 数据目录
//   - DICE_LISTEN: 监听地址（逗号分隔）
//   - DICE_BOOTSTRAP_PEERS: 引导节点（逗号分隔）
//   - DICE_PUBLIC_ADDR: 公网地址，设置后强制为 Direct
//   - DICE_METRICS_ADDR: 指标监听地址
func applyEnvOverrides(cfg *config.Config) {
	if v := getenv(envDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := getenv(envListen); v != "" {
		cfg.Transport.ListenAddrs = splitAndTrim(v, ",")
	}
	if v := getenv(envBootstrapPeers); v != "" {
		cfg.Overlay.BootstrapPeers = splitAndTrim(v, ",")
	}
	if v := getenv(envPublicAddr); v != "" {
		setPublicAddr(cfg, v)
	}
	if v := getenv(envMetricsAddr); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

// setPublicAddr 公网地址意味着 Direct，不再需要端口映射
func setPublicAddr(cfg *config.Config, addr string) {
	cfg.NAT.ForceType = "direct"
	cfg.NAT.PublicAddrs = splitAndTrim(addr, ",")
	cfg.NAT.PortMapping = false
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
