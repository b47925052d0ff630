// Package config 提供节点的统一配置
//
// 主 Config 按功能分节，每节在独立文件中定义并带有 DefaultXxxConfig 与 Validate：
//   - Identity: 密钥文件
//   - Transport: UDP 监听地址
//   - NAT: 强制类别、公网地址、端口映射、打洞、白名单、STUN
//   - Overlay: 路由表与查找参数、引导节点
//   - Healthcheck: 两类健康检查的周期与阈值
//   - Request: 请求超时
//   - Cache: 内部缓存
//   - Relay: 转发限速
//   - Storage: 数据目录
//   - Metrics: Prometheus 指标
//
// 使用示例：
//
//	cfg := config.Default()
//	cfg.Overlay.BootstrapPeers = []string{"203.0.113.7:4000"}
//
//	cfg, err := config.Load("dice.json")
package config

// Config 节点的完整配置
type Config struct {
	Identity    IdentityConfig    `json:"identity"`
	Transport   TransportConfig   `json:"transport"`
	NAT         NATConfig         `json:"nat"`
	Overlay     OverlayConfig     `json:"overlay"`
	Healthcheck HealthcheckConfig `json:"healthcheck"`
	Request     RequestConfig     `json:"request"`
	Cache       CacheConfig       `json:"cache"`
	Relay       RelayConfig       `json:"relay"`
	Storage     StorageConfig     `json:"storage"`
	Metrics     MetricsConfig     `json:"metrics"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Identity:    DefaultIdentityConfig(),
		Transport:   DefaultTransportConfig(),
		NAT:         DefaultNATConfig(),
		Overlay:     DefaultOverlayConfig(),
		Healthcheck: DefaultHealthcheckConfig(),
		Request:     DefaultRequestConfig(),
		Cache:       DefaultCacheConfig(),
		Relay:       DefaultRelayConfig(),
		Storage:     DefaultStorageConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 逐节校验，返回第一个错误
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		c.Identity,
		c.Transport,
		c.NAT,
		c.Overlay,
		c.Healthcheck,
		c.Request,
		c.Cache,
		c.Relay,
		c.Storage,
		c.Metrics,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
