// Package logging builds the process-wide zap logger. Logs go to stderr so
// stdout stays reserved for reports and data streams.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seenimoa/filingret/internal/config"
)

// New builds a logger from the logging section of the config.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := cfg.Encoding
	if encoding != "json" {
		encoding = "console"
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableStacktrace: !cfg.Development,
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	if encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zc.Build()
}

// Must is New for main: it falls back to a no-op logger instead of failing.
func Must(cfg config.LoggingConfig) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// OrNop returns l, or a no-op logger when l is nil. Library constructors use
// it so callers may omit a logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
