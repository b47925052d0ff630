package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format 输出格式
type Format int

const (
	// FormatText key=value 文本（默认）
	FormatText Format = iota
	// FormatJSON 每行一个 JSON 对象
	FormatJSON
)

// Config 日志配置
type Config struct {
	mu sync.RWMutex

	// DefaultLevel 未单独配置的子系统使用的级别
	DefaultLevel slog.Level

	// Levels 子系统级别
	Levels map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否附带源码位置
	AddSource bool
}

// LevelFor 返回子系统的级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if level, ok := c.Levels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv 读取一次环境变量并缓存结果
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = parseEnv()
	})
	return envConfig
}

func parseEnv() *Config {
	cfg := &Config{
		DefaultLevel: slog.LevelInfo,
		Levels:       make(map[string]slog.Level),
		Format:       FormatText,
	}

	if v := os.Getenv("DICE_LOG_LEVEL"); v != "" {
		parseLevels(cfg, v)
	}
	if strings.EqualFold(os.Getenv("DICE_LOG_FORMAT"), "json") {
		cfg.Format = FormatJSON
	}
	if v := os.Getenv("DICE_LOG_ADD_SOURCE"); v != "" {
		cfg.AddSource = v != "false" && v != "0"
	}
	return cfg
}

// parseLevels 解析 "socket=debug,table=warn,info"
//
// 不带 "=" 的项设置默认级别，无法识别的级别名被忽略。
func parseLevels(cfg *Config, spec string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			cfg.Levels[strings.TrimSpace(name)] = level
		}
	}
}

// ParseLevel 解析级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// resetConfig 仅供测试
func resetConfig() {
	envConfigOnce = sync.Once{}
	envConfig = nil
}
