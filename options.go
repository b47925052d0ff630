package dice

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-dice/config"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 完整配置，为空时使用 config.Default()
	config *config.Config

	// 预设，在 config 之上应用
	preset string

	// 直接注入的密钥，优先于配置中的密钥文件
	keys *keys.Keys

	// 直接注入的传输，优先于配置中的监听地址
	transport transport.Transport

	// 引导节点
	bootstrapPeers    []string
	bootstrapPeersSet bool

	// 指标注册表，为空时使用独立的注册表
	registerer prometheus.Registerer

	clock clock.Clock

	// 用户扩展
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

// resolveConfig 合并配置、预设与覆盖项并校验
func (o *options) resolveConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.config != nil {
		c := *o.config
		cfg = &c
	} else {
		cfg = config.Default()
	}

	if err := config.ApplyPreset(cfg, o.preset); err != nil {
		return nil, err
	}

	// 显式设置为空时用于创世节点
	if o.bootstrapPeersSet {
		cfg.Overlay.BootstrapPeers = o.bootstrapPeers
	}

	// 注入的密钥不落盘
	if o.keys != nil {
		cfg.Identity.KeyFile = ""
		cfg.Identity.Ephemeral = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              选项
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
//
// 配置会被复制，调用方后续的修改不影响节点。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("dice: nil config")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用场景预设："client"、"bootstrap"、"mobile"
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// WithKeys 使用已有密钥
func WithKeys(k *keys.Keys) Option {
	return func(o *options) error {
		if k == nil {
			return errors.New("dice: nil keys")
		}
		o.keys = k
		return nil
	}
}

// WithTransport 使用自定义数据报传输
//
// 传输的所有权交给节点，节点关闭时一并关闭。
func WithTransport(t transport.Transport) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("dice: nil transport")
		}
		o.transport = t
		return nil
	}
}

// WithBootstrapPeers 设置引导节点 "ip:port"
//
// 不带参数调用表示没有引导节点。
func WithBootstrapPeers(peers ...string) Option {
	return func(o *options) error {
		for _, p := range peers {
			if _, err := types.ParseNetworkAddress(p); err != nil {
				return fmt.Errorf("dice: bootstrap peer %q: %w", p, err)
			}
		}
		o.bootstrapPeers = append([]string(nil), peers...)
		o.bootstrapPeersSet = true
		return nil
	}
}

// WithRegisterer 指标注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithFxOptions 追加 fx 模块
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
