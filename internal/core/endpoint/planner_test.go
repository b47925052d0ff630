package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/pkg/types"
)

func TestFindArc_SourceOrderIsAuthoritative(t *testing.T) {
	src := []Endpoint{
		Direct{Addr: addr(t, "203.0.113.1:1")},
		Direct{Addr: addr(t, "[2001:db8::1]:1")},
	}
	dst := []Endpoint{
		Direct{Addr: addr(t, "[2001:db8::2]:1")},
		Direct{Addr: addr(t, "203.0.113.2:1")},
	}

	arc, ok := FindArc(src, dst, Filter{})
	require.True(t, ok)
	// 第一个 source 端点是 IPv4，即便 IPv6 评分更高也选 IPv4
	assert.Equal(t, src[0], arc.Source)
	assert.Equal(t, dst[1], arc.Target)
}

func TestFindArc_Filters(t *testing.T) {
	relay := addr(t, "203.0.113.9:1")
	src := []Endpoint{
		Direct{Addr: addr(t, "203.0.113.1:1")},
		Direct{Addr: addr(t, "[2001:db8::1]:1")},
	}
	dst := []Endpoint{
		Relayed{Addr: addr(t, "198.51.100.2:1"), Relay: relay},
		Direct{Addr: addr(t, "[2001:db8::2]:1")},
	}

	arc, ok := FindArc(src, dst, Filter{Families: []types.IPFamily{types.IPv6}})
	require.True(t, ok)
	assert.Equal(t, types.IPv6, Family(arc.Source))

	arc, ok = FindArc(src, dst, Filter{NATTypes: []types.NATType{types.NATTypeDirect}})
	require.True(t, ok)
	assert.Equal(t, dst[1], arc.Target)

	_, ok = FindArc(src, dst, Filter{NATTypes: []types.NATType{types.NATTypeSymmetric}})
	assert.False(t, ok)
}

func TestFindArc_NoSameFamily(t *testing.T) {
	src := []Endpoint{Direct{Addr: addr(t, "203.0.113.1:1")}}
	dst := []Endpoint{Direct{Addr: addr(t, "[2001:db8::2]:1")}}

	_, ok := FindArc(src, dst, Filter{})
	assert.False(t, ok)
	_, ok = FindArc(nil, dst, Filter{})
	assert.False(t, ok)
}

func TestPlan(t *testing.T) {
	relay4 := addr(t, "203.0.113.9:1")
	direct := Direct{Addr: addr(t, "203.0.113.1:1")}
	direct6 := Direct{Addr: addr(t, "[2001:db8::1]:1")}
	relayed := Relayed{Addr: addr(t, "198.51.100.2:1"), Relay: relay4}
	symmetric := Symmetric{Addr: addr(t, "198.51.100.3:1"), Relay: relay4}

	cases := []struct {
		name   string
		source Endpoint
		target Endpoint
		want   Action
	}{
		{"direct to direct", direct, direct, ActionDirect},
		{"symmetric to direct", symmetric, direct, ActionDirect},
		{"unknown to direct", nil, direct, ActionDirect},
		{"direct to relayed", direct, relayed, ActionPunch},
		{"relayed to relayed", relayed, relayed, ActionPunch},
		{"symmetric to relayed", symmetric, relayed, ActionRelay},
		{"direct to symmetric", direct, symmetric, ActionReveal},
		{"relayed to symmetric", relayed, symmetric, ActionRelay},
		{"symmetric to symmetric", symmetric, symmetric, ActionRelay},
		{"mismatched families", direct6, direct, ActionRelay},
		{"mismatched families to symmetric", direct6, symmetric, ActionRelay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Plan(tc.source, tc.target))
		})
	}
}
