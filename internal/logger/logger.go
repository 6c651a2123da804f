package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/config"
)

// New builds the service logger. An unknown level is a configuration error.
func New(cfg config.LogConfig, service string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL %q", config.ErrInvalidConfig, cfg.Level)
	}

	zc := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	switch cfg.Format {
	case "console":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zc.DisableStacktrace = true
	case "json", "":
		zc.Encoding = "json"
	default:
		return nil, fmt.Errorf("%w: LOG_FORMAT %q", config.ErrInvalidConfig, cfg.Format)
	}

	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.MessageKey = "message"
	zc.InitialFields = map[string]any{"service": service}

	return zc.Build()
}

// Fallback is used when the configured logger cannot be built.
func Fallback(service string) *zap.Logger {
	lg, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return lg.With(zap.String("service", service))
}
