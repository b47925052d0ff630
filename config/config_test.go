package config

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.Request.Timeout.Duration())
	assert.Equal(t, 20, cfg.Overlay.BucketSize)
	assert.True(t, cfg.Overlay.AutoBootstrap)
}

func TestDuration_JSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1500ms","b":2000000000}`), &v))
	assert.Equal(t, 1500*time.Millisecond, v.A.Duration())
	assert.Equal(t, 2*time.Second, v.B.Duration())

	out, err := json.Marshal(v.A)
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestFromJSON_KeepsDefaults(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"overlay": {"bootstrap_peers": ["203.0.113.7:4000"]},
		"request": {"timeout": "500ms"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.7:4000"}, cfg.Overlay.BootstrapPeers)
	assert.Equal(t, 500*time.Millisecond, cfg.Request.Timeout.Duration())
	assert.Equal(t, DefaultHealthcheckConfig(), cfg.Healthcheck)
	assert.Equal(t, DefaultTransportConfig(), cfg.Transport)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no listen addrs":     func(c *Config) { c.Transport.ListenAddrs = nil },
		"bad listen addr":     func(c *Config) { c.Transport.ListenAddrs = []string{"nowhere"} },
		"two ipv4 listeners":  func(c *Config) { c.Transport.ListenAddrs = []string{"0.0.0.0:1", "127.0.0.1:2"} },
		"bad force type":      func(c *Config) { c.NAT.ForceType = "cone" },
		"bad public addr":     func(c *Config) { c.NAT.PublicAddrs = []string{"1.2.3.4"} },
		"bad family":          func(c *Config) { c.NAT.Families = []string{"ipx"} },
		"bad bootstrap peer":  func(c *Config) { c.Overlay.BootstrapPeers = []string{"x:y"} },
		"zero bucket":         func(c *Config) { c.Overlay.BucketSize = 0 },
		"zero timeout":        func(c *Config) { c.Request.Timeout = 0 },
		"negative interval":   func(c *Config) { c.Healthcheck.NodeInterval = -1 },
		"zero relay rate":     func(c *Config) { c.Relay.Rate = 0 },
		"zero cache limit":    func(c *Config) { c.Cache.Limit = 0 },
		"empty data dir":      func(c *Config) { c.Storage.DataDir = "" },
		"bad metrics addr":    func(c *Config) { c.Metrics.ListenAddr = "9100" },
		"ephemeral with file": func(c *Config) { c.Identity.Ephemeral = true; c.Identity.KeyFile = "k.pem" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "dice.json")
	cfg := Default()
	cfg.NAT.ForceType = "direct"
	cfg.NAT.PublicAddrs = []string{"203.0.113.7:4000"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestKeyPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/var/lib/dice"
	assert.Equal(t, "/var/lib/dice/identity.pem", cfg.KeyPath())

	cfg.Identity.KeyFile = "node.pem"
	assert.Equal(t, "/var/lib/dice/node.pem", cfg.KeyPath())

	cfg.Identity.KeyFile = "/etc/dice/key.pem"
	assert.Equal(t, "/etc/dice/key.pem", cfg.KeyPath())

	cfg.Identity.KeyFile = ""
	cfg.Identity.Ephemeral = true
	assert.Empty(t, cfg.KeyPath())
}

func TestApplyPreset(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyPreset(cfg, "bootstrap"))
	assert.Equal(t, "direct", cfg.NAT.ForceType)
	assert.False(t, cfg.NAT.PortMapping)
	require.NoError(t, cfg.Validate())

	cfg = Default()
	require.NoError(t, ApplyPreset(cfg, "mobile"))
	assert.Equal(t, 2, cfg.Healthcheck.Concurrency)
	require.NoError(t, cfg.Validate())

	assert.Error(t, ApplyPreset(cfg, "desktop"))
	assert.Error(t, ApplyPreset(nil, "client"))
}
