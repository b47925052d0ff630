package portmap

import (
	"context"
	"net/netip"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
)

type natpmpClient struct {
	client *natpmp.Client
}

func (c *natpmpClient) protocol() string { return "nat-pmp" }

func discoverNATPMP(ctx context.Context, timeout time.Duration) (gatewayClient, error) {
	gw, err := await(ctx, gateway.DiscoverGateway)
	if err != nil {
		return nil, err
	}
	c := &natpmpClient{client: natpmp.NewClientWithTimeout(gw, timeout)}
	// 网关必须真的响应 NAT-PMP
	if _, err := c.externalIP(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *natpmpClient) externalIP(ctx context.Context) (netip.Addr, error) {
	res, err := await(ctx, c.client.GetExternalAddress)
	if err != nil {
		return netip.Addr{}, err
	}
	return netip.AddrFrom4(res.ExternalIPAddress), nil
}

func (c *natpmpClient) addMapping(ctx context.Context, internal, external uint16, lease time.Duration) (uint16, error) {
	res, err := await(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return c.client.AddPortMapping("udp", int(internal), int(external), int(lease/time.Second))
	})
	if err != nil {
		return 0, err
	}
	return res.MappedExternalPort, nil
}

func (c *natpmpClient) deleteMapping(ctx context.Context, external uint16) error {
	// NAT-PMP 以零租约删除映射
	_, err := await(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return c.client.AddPortMapping("udp", int(external), 0, 0)
	})
	return err
}
