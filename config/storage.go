package config

import "errors"

// StorageConfig 数据目录，保存密钥与 generation 计数文件
type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

// DefaultStorageConfig 默认使用当前目录下的 .dice
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{DataDir: ".dice"}
}

// Validate 校验
func (c StorageConfig) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: storage: data_dir required")
	}
	return nil
}
