package dice

import (
	"fmt"

	"github.com/dep2p/go-dice/config"
	"github.com/dep2p/go-dice/internal/core/cache"
	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/socket"
	"github.com/dep2p/go-dice/internal/core/transport"
	"github.com/dep2p/go-dice/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              配置转换
// ════════════════════════════════════════════════════════════════════════════

// socketConfig 把用户配置转换为引擎配置
func socketConfig(cfg *config.Config) (socket.Config, error) {
	sc := socket.DefaultConfig()

	sc.RequestTimeout = cfg.Request.Timeout.Duration()
	sc.AutoBootstrap = cfg.Overlay.AutoBootstrap
	sc.BucketSize = cfg.Overlay.BucketSize
	sc.LookupConcurrency = cfg.Overlay.LookupConcurrency
	sc.LookupResultSize = cfg.Overlay.LookupResultSize
	sc.NodeHealthcheckInterval = cfg.Healthcheck.NodeInterval.Duration()
	sc.OverlayHealthcheckInterval = cfg.Healthcheck.OverlayInterval.Duration()
	sc.HealthcheckConcurrency = cfg.Healthcheck.Concurrency
	sc.FailureThreshold = cfg.Healthcheck.FailureThreshold
	sc.Cache = cache.Config{TTL: cfg.Cache.TTL.Duration(), Limit: cfg.Cache.Limit}
	sc.RelayRate = cfg.Relay.Rate
	sc.RelayBurst = cfg.Relay.Burst
	sc.PortMapping = cfg.NAT.PortMapping
	sc.PunchPriming = cfg.NAT.PunchPriming

	var err error
	if sc.BootstrapPeers, err = parseAddrs(cfg.Overlay.BootstrapPeers); err != nil {
		return sc, fmt.Errorf("dice: bootstrap peers: %w", err)
	}
	if sc.PublicAddrs, err = parseAddrs(cfg.NAT.PublicAddrs); err != nil {
		return sc, fmt.Errorf("dice: public addrs: %w", err)
	}
	if sc.STUNServers, err = parseAddrs(cfg.NAT.STUNServers); err != nil {
		return sc, fmt.Errorf("dice: stun servers: %w", err)
	}
	if cfg.NAT.ForceType != "" {
		if sc.ForceNATType, err = types.ParseNATType(cfg.NAT.ForceType); err != nil {
			return sc, err
		}
	}
	if sc.Filter, err = filter(cfg.NAT); err != nil {
		return sc, err
	}
	return sc, sc.Validate()
}

func filter(c config.NATConfig) (endpoint.Filter, error) {
	var f endpoint.Filter
	for _, s := range c.Families {
		fam, err := types.ParseIPFamily(s)
		if err != nil {
			return f, err
		}
		f.Families = append(f.Families, fam)
	}
	for _, s := range c.NATTypes {
		nt, err := types.ParseNATType(s)
		if err != nil {
			return f, err
		}
		f.NATTypes = append(f.NATTypes, nt)
	}
	return f, nil
}

func udpConfig(cfg *config.Config) transport.UDPConfig {
	uc := transport.DefaultUDPConfig()
	uc.ListenAddrs = append([]string(nil), cfg.Transport.ListenAddrs...)
	if cfg.Transport.QueueSize > 0 {
		uc.QueueSize = cfg.Transport.QueueSize
	}
	return uc
}

func parseAddrs(ss []string) ([]types.NetworkAddress, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]types.NetworkAddress, 0, len(ss))
	for _, s := range ss {
		a, err := types.ParseNetworkAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, a)
	}
	return out, nil
}
