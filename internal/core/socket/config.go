package socket

import (
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-dice/internal/core/cache"
	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/pkg/types"
)

// 默认值
const (
	DefaultRequestTimeout             = 3 * time.Second
	DefaultLookupConcurrency          = 3
	DefaultLookupResultSize           = 20
	DefaultNodeHealthcheckInterval    = time.Minute
	DefaultOverlayHealthcheckInterval = 30 * time.Second
	DefaultHealthcheckConcurrency     = 8
	DefaultFailureThreshold           = 3
	DefaultRelayRate                  = 20
	DefaultRelayBurst                 = 40
)

// Config 引擎配置
type Config struct {
	// RequestTimeout 等待应答的默认超时
	RequestTimeout time.Duration

	// BootstrapPeers 引导节点地址
	BootstrapPeers []types.NetworkAddress

	// AutoBootstrap Open 后是否自动引导
	AutoBootstrap bool

	// ForceNATType 非 Unknown 时跳过 NAT 探测，直接以该类别发布记录
	ForceNATType types.NATType

	// PublicAddrs 与 ForceNATType=Direct 一起使用的公网地址
	PublicAddrs []types.NetworkAddress

	// PortMapping 引导前尝试 UPnP / NAT-PMP 映射
	PortMapping bool

	// PunchPriming 打洞前先向目标发送 noop
	PunchPriming bool

	// Filter 端点白名单
	Filter endpoint.Filter

	// STUNServers 直连节点不足两个时用作第二个反射点
	STUNServers []types.NetworkAddress

	// BucketSize 路由表桶宽
	BucketSize int

	// LookupConcurrency 并发查找链数
	LookupConcurrency int

	// LookupResultSize 查找保留的最近节点数
	LookupResultSize int

	NodeHealthcheckInterval    time.Duration
	OverlayHealthcheckInterval time.Duration

	// HealthcheckConcurrency 覆盖网络健康检查的并发 ping 数
	HealthcheckConcurrency int

	// FailureThreshold 连续多少次节点健康检查失败后重新引导
	FailureThreshold int

	// Cache 各内部缓存的 TTL 与上限
	Cache cache.Config

	// RelayRate 每个发送方每秒可请求的转发次数
	RelayRate float64

	// RelayBurst 转发令牌桶容量
	RelayBurst int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		RequestTimeout:             DefaultRequestTimeout,
		AutoBootstrap:              true,
		PunchPriming:               true,
		BucketSize:                 20,
		LookupConcurrency:          DefaultLookupConcurrency,
		LookupResultSize:           DefaultLookupResultSize,
		NodeHealthcheckInterval:    DefaultNodeHealthcheckInterval,
		OverlayHealthcheckInterval: DefaultOverlayHealthcheckInterval,
		HealthcheckConcurrency:     DefaultHealthcheckConcurrency,
		FailureThreshold:           DefaultFailureThreshold,
		Cache:                      cache.DefaultConfig(),
		RelayRate:                  DefaultRelayRate,
		RelayBurst:                 DefaultRelayBurst,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return errors.New("socket: request timeout must be positive")
	}
	if c.LookupConcurrency <= 0 || c.LookupResultSize <= 0 {
		return errors.New("socket: lookup concurrency and result size must be positive")
	}
	if c.NodeHealthcheckInterval < 0 || c.OverlayHealthcheckInterval < 0 {
		return errors.New("socket: healthcheck intervals must not be negative")
	}
	if c.HealthcheckConcurrency <= 0 {
		return errors.New("socket: healthcheck concurrency must be positive")
	}
	if c.FailureThreshold <= 0 {
		return errors.New("socket: failure threshold must be positive")
	}
	if c.ForceNATType != types.NATTypeUnknown && !c.ForceNATType.Valid() {
		return fmt.Errorf("socket: invalid forced nat type %d", c.ForceNATType)
	}
	if c.ForceNATType == types.NATTypeDirect {
		for _, a := range c.PublicAddrs {
			if !a.IsValid() {
				return fmt.Errorf("socket: invalid public address %s", a)
			}
		}
	}
	for _, a := range c.BootstrapPeers {
		if !a.IsValid() {
			return fmt.Errorf("socket: invalid bootstrap address %s", a)
		}
	}
	if c.RelayRate <= 0 || c.RelayBurst <= 0 {
		return errors.New("socket: relay rate and burst must be positive")
	}
	return nil
}
