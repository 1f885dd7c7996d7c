package logging

import (
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// EnvProduction selects JSON output at the configured level.
const EnvProduction = "production"

// New builds a slog logger backed by zap. Production environments log JSON;
// anything else gets the colored development console encoder. The returned
// function flushes buffered entries.
func New(env, level string) (*slog.Logger, func() error, error) {
	cfg, err := zapConfig(env, level)
	if err != nil {
		return nil, nil, err
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return FromZap(logger), logger.Sync, nil
}

// FromZap exposes a zap logger through the slog API.
func FromZap(logger *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(logger.Core()))
}

func zapConfig(env, level string) (zap.Config, error) {
	var cfg zap.Config
	if strings.EqualFold(strings.TrimSpace(env), EnvProduction) {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stdout"}

	if strings.TrimSpace(level) != "" {
		lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
		if err != nil {
			return zap.Config{}, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg, nil
}
