package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"teamboard/pkg/config"
	"teamboard/pkg/trace"
)

var Log *zap.Logger

// NewLogger 按配置创建 zap logger，development 模式输出可读格式
func NewLogger(cfg config.LogConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
