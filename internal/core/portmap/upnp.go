package portmap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"
)

// igdClient WANIPConnection / WANPPPConnection 服务共有的方法
type igdClient interface {
	GetExternalIPAddress() (string, error)
	AddPortMapping(remoteHost string, externalPort uint16, protocol string, internalPort uint16,
		internalClient string, enabled bool, description string, leaseDuration uint32) error
	DeletePortMapping(remoteHost string, externalPort uint16, protocol string) error
}

type upnpClient struct {
	igd     igdClient
	localIP string
}

func (c *upnpClient) protocol() string { return "upnp" }

func discoverUPnP(ctx context.Context, _ time.Duration) (gatewayClient, error) {
	igd, err := await(ctx, findIGD)
	if err != nil {
		return nil, err
	}
	local, err := localIPv4()
	if err != nil {
		return nil, err
	}
	return &upnpClient{igd: igd, localIP: local}, nil
}

// findIGD 按 IGDv2 IP、IGDv2 PPP、IGDv1 IP、IGDv1 PPP 的顺序查找
func findIGD() (igdClient, error) {
	if cs, _, err := internetgateway2.NewWANIPConnection1Clients(); err == nil && len(cs) > 0 {
		return cs[0], nil
	}
	if cs, _, err := internetgateway2.NewWANPPPConnection1Clients(); err == nil && len(cs) > 0 {
		return cs[0], nil
	}
	if cs, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(cs) > 0 {
		return cs[0], nil
	}
	if cs, _, err := internetgateway1.NewWANPPPConnection1Clients(); err == nil && len(cs) > 0 {
		return cs[0], nil
	}
	return nil, ErrNoGateway
}

func (c *upnpClient) externalIP(ctx context.Context) (netip.Addr, error) {
	s, err := await(ctx, c.igd.GetExternalIPAddress)
	if err != nil {
		return netip.Addr{}, err
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidExternalIP, s)
	}
	return ip, nil
}

func (c *upnpClient) addMapping(ctx context.Context, internal, external uint16, lease time.Duration) (uint16, error) {
	_, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, c.igd.AddPortMapping("", external, "UDP", internal, c.localIP, true, description, uint32(lease/time.Second))
	})
	if err != nil {
		return 0, err
	}
	return external, nil
}

func (c *upnpClient) deleteMapping(ctx context.Context, external uint16) error {
	_, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, c.igd.DeletePortMapping("", external, "UDP")
	})
	return err
}

// localIPv4 网关所在局域网中的本机地址
func localIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipNet.IP.To4(); ip != nil && ip.IsPrivate() {
				return ip.String(), nil
			}
		}
	}
	return "", errors.New("portmap: no private ipv4 address")
}
