package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FromJSON 在默认配置之上解析 JSON，缺省的字段保持默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load 读取并校验配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return FromJSON(data)
}

// Save 以缩进 JSON 写入 path
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// KeyPath 身份密钥文件的实际路径，临时身份时为空
func (c *Config) KeyPath() string {
	if c.Identity.Ephemeral {
		return ""
	}
	if c.Identity.KeyFile == "" {
		return filepath.Join(c.Storage.DataDir, "identity.pem")
	}
	if filepath.IsAbs(c.Identity.KeyFile) {
		return c.Identity.KeyFile
	}
	return filepath.Join(c.Storage.DataDir, c.Identity.KeyFile)
}
