// Package logger 提供 dice 的分子系统日志
//
// 基于 log/slog，每个子系统一个 Logger，级别可按子系统单独配置：
//
//	var log = logger.Logger("socket")
//
//	log.Debug("drop datagram", "from", addr, "reason", "bad magic")
//
// 环境变量：
//
//	DICE_LOG_LEVEL=socket=debug,table=warn,info
//	DICE_LOG_FORMAT=json
//	DICE_LOG_ADD_SOURCE=false
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 子系统 -> *slog.Logger
	loggers sync.Map

	// handlers 子系统 -> *subsystemHandler，用于运行时调整级别
	handlers sync.Map
)

// Logger 返回子系统的 Logger，同名子系统共享同一个实例
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	h := newHandler(subsystem, cfg.LevelFor(subsystem), cfg)
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 调整单个子系统的级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).setLevel(level)
	}
}

// SetLevels 按 DICE_LOG_LEVEL 的语法批量调整已创建与之后创建的子系统级别
//
// 供命令行 -log-level 参数使用。
func SetLevels(spec string) {
	cfg := ConfigFromEnv()
	cfg.mu.Lock()
	parseLevels(cfg, spec)
	cfg.mu.Unlock()

	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).setLevel(cfg.LevelFor(key.(string)))
		return true
	})
}

// SetOutput 切换全部 Logger 的输出目标，已创建的 Logger 同样生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃一切输出的 Logger
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
