// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"

	"github.com/conduit-lang/apiorm/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger for cfg: a no-op logger when logging is disabled, otherwise
// a development or production logger at the configured level.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Disabled {
		return zap.NewNop(), nil
	}

	var level zapcore.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("apiorm"), nil
}
