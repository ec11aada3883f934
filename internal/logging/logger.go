// Package logging builds the zap loggers used across the tuning service.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger with the given configuration.
func New(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output, err := getOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(output), parseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// NewWriter creates a logger writing to w. It is meant for tests that
// inspect log output.
func NewWriter(cfg *Config, w zapcore.WriteSyncer) *zap.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return zap.New(zapcore.NewCore(newEncoder(cfg.Format), w, parseLevel(cfg.Level)))
}

type ctxLoggerKey struct{}

// FromContext returns the logger stored in ctx, or the global zap logger if
// none exists.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.L()
}

// WithContext returns a new context carrying logger.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}
