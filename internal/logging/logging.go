// Package logging wraps Zap with context-aware methods. Tenant and request
// identifiers carried in a context are attached to every log entry.
package logging

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Level != "" {
		if _, err := zapcore.ParseLevel(c.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}
	if c.Format != "" && c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format %q (want json or console)", c.Format)
	}
	return nil
}

// Logger wraps Zap with context-aware methods.
type Logger struct {
	zap *zap.Logger
}

// NewLogger creates a logger from config.
func NewLogger(cfg Config) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		level, _ = zapcore.ParseLevel(cfg.Level)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		zapCfg.Encoding = "console"
	}

	zl, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}
	return &Logger{zap: zl}, nil
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

// With returns a child logger with constant fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger with the given name appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Underlying returns the wrapped zap.Logger for libraries that require one.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	// Syncing stdout/stderr returns EINVAL or ENOTTY on Linux; harmless.
	if err != nil && isStdoutSyncError(err) {
		return nil
	}
	return err
}

func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
