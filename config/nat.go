package config

import (
	"fmt"

	"github.com/dep2p/go-dice/pkg/types"
)

// NATConfig NAT 穿透配置
type NATConfig struct {
	// ForceType 跳过探测直接发布的类别："direct"、"relayed"、"symmetric"，空为自动探测
	ForceType string `json:"force_type,omitempty"`

	// PublicAddrs 与 ForceType=direct 一起发布的公网地址
	PublicAddrs []string `json:"public_addrs,omitempty"`

	// PortMapping 引导前尝试 UPnP / NAT-PMP 端口映射
	PortMapping bool `json:"port_mapping"`

	// PunchPriming 打洞前先向目标发送 noop
	PunchPriming bool `json:"punch_priming"`

	// Families 允许使用的地址族（"ipv4"、"ipv6"），空为不限
	Families []string `json:"families,omitempty"`

	// NATTypes 允许的对端类别，空为不限
	NATTypes []string `json:"nat_types,omitempty"`

	// STUNServers 直连节点不足时使用的 STUN 服务器（ip:port）
	STUNServers []string `json:"stun_servers,omitempty"`
}

// DefaultNATConfig 默认自动探测，启用端口映射与打洞预热
func DefaultNATConfig() NATConfig {
	return NATConfig{
		PortMapping:  true,
		PunchPriming: true,
	}
}

// Validate 校验
func (c NATConfig) Validate() error {
	if c.ForceType != "" {
		if _, err := types.ParseNATType(c.ForceType); err != nil {
			return fmt.Errorf("config: nat: force_type: %w", err)
		}
	}
	if err := validateAddrs("nat: public_addrs", c.PublicAddrs); err != nil {
		return err
	}
	if err := validateAddrs("nat: stun_servers", c.STUNServers); err != nil {
		return err
	}
	for _, f := range c.Families {
		if _, err := types.ParseIPFamily(f); err != nil {
			return fmt.Errorf("config: nat: families: %w", err)
		}
	}
	for _, n := range c.NATTypes {
		if _, err := types.ParseNATType(n); err != nil {
			return fmt.Errorf("config: nat: nat_types: %w", err)
		}
	}
	return nil
}

func validateAddrs(field string, addrs []string) error {
	for _, s := range addrs {
		if _, err := types.ParseNetworkAddress(s); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	return nil
}
