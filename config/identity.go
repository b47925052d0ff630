package config

import "errors"

// IdentityConfig 身份配置
type IdentityConfig struct {
	// KeyFile PEM 私钥文件；相对路径相对于 Storage.DataDir，为空时使用 DataDir 下的 identity.pem
	KeyFile string `json:"key_file,omitempty"`

	// Ephemeral 只在内存中生成临时密钥，不读写任何文件
	Ephemeral bool `json:"ephemeral,omitempty"`
}

// DefaultIdentityConfig 默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 校验
func (c IdentityConfig) Validate() error {
	if c.Ephemeral && c.KeyFile != "" {
		return errors.New("config: identity: key_file and ephemeral are mutually exclusive")
	}
	return nil
}
