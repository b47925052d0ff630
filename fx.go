package dice

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dice/config"
	"github.com/dep2p/go-dice/internal/core/eventbus"
	"github.com/dep2p/go-dice/internal/core/generation"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/metrics"
	"github.com/dep2p/go-dice/internal/core/socket"
	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/internal/util/logger"
)

var fxLogger = logger.Logger("dice/fx")

// buildFxApp 组装节点的全部组件
func buildFxApp(cfg *config.Config, o *options, peer *Peer) (*fx.App, error) {
	sc, err := socketConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("socket config: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(cfg),
		fx.Supply(sc),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 1. 身份
	// ════════════════════════════════════════════════════════════════════════
	if o.keys != nil {
		modules = append(modules, fx.Supply(o.keys))
	} else {
		modules = append(modules, fx.Provide(provideKeys))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. generation 计数器
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Provide(provideGeneration))

	// ════════════════════════════════════════════════════════════════════════
	// 3. 传输
	// ════════════════════════════════════════════════════════════════════════
	if o.transport != nil {
		modules = append(modules, fx.Provide(func() transport.Transport { return o.transport }))
	} else {
		modules = append(modules, fx.Provide(provideUDP))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 指标（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.Metrics.Enabled {
		reg := o.registerer
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		if g, ok := reg.(prometheus.Gatherer); ok {
			peer.gatherer = g
		}
		modules = append(modules, fx.Provide(func() metrics.Reporter {
			return metrics.NewPrometheus(reg)
		}))
	} else {
		modules = append(modules, fx.Provide(func() metrics.Reporter { return metrics.Nop{} }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 事件总线与协议引擎
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Provide(eventbus.NewBus),
		fx.Provide(provideSocket(o)),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 6. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(o.fxOptions) > 0 {
		modules = append(modules, o.fxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 7. Peer 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectPeerComponents(peer)))

	// ════════════════════════════════════════════════════════════════════════
	// 8. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              Providers
// ════════════════════════════════════════════════════════════════════════════

func provideKeys(cfg *config.Config) (*keys.Keys, error) {
	return keys.LoadOrGenerate(cfg.KeyPath())
}

// provideGeneration 持久身份使用数据目录下加锁的计数文件，临时身份只在内存中计数
func provideGeneration(lc fx.Lifecycle, cfg *config.Config, k *keys.Keys) (generation.Counter, error) {
	if cfg.KeyPath() == "" {
		return generation.NewMemory(0), nil
	}
	f, err := generation.Open(cfg.Storage.DataDir, k.DiceAddress())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return f.Close()
		},
	})
	return f, nil
}

func provideUDP(cfg *config.Config) (transport.Transport, error) {
	return transport.ListenUDP(udpConfig(cfg))
}

type socketParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     socket.Config
	Keys       *keys.Keys
	Transport  transport.Transport
	Generation generation.Counter
	Metrics    metrics.Reporter
	Bus        *eventbus.Bus
}

func provideSocket(o *options) func(p socketParams) (*socket.Socket, error) {
	return func(p socketParams) (*socket.Socket, error) {
		gen, err := p.Generation.Next()
		if err != nil {
			return nil, fmt.Errorf("next generation: %w", err)
		}
		opts := []socket.Option{
			socket.WithGeneration(gen),
			socket.WithMetrics(p.Metrics),
			socket.WithEventBus(p.Bus),
		}
		if o.clock != nil {
			opts = append(opts, socket.WithClock(o.clock))
		}
		s, err := socket.New(p.Keys, p.Transport, p.Config, opts...)
		if err != nil {
			p.Transport.Close()
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return s.Open(ctx)
			},
			OnStop: func(context.Context) error {
				return s.Close()
			},
		})
		fxLogger.Debug("socket provided", "id", p.Keys.DiceAddress().ShortString(), "generation", gen)
		return s, nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件注入
// ════════════════════════════════════════════════════════════════════════════

type peerInjectParams struct {
	fx.In

	Socket     *socket.Socket
	Bus        *eventbus.Bus
	Keys       *keys.Keys
	Generation generation.Counter
}

func injectPeerComponents(peer *Peer) func(p peerInjectParams) {
	return func(p peerInjectParams) {
		peer.socket = p.Socket
		peer.bus = p.Bus
		peer.keys = p.Keys
		peer.generation = p.Generation
	}
}
