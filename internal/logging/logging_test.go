package logging

import (
	"testing"

	"github.com/conduit-lang/apiorm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"production default", config.LogConfig{}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"debug", config.LogConfig{Level: "debug"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"development warn", config.LogConfig{Level: "warn", Development: true}, zapcore.WarnLevel, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger.Check(tt.enabled, "message"))
			assert.Nil(t, logger.Check(tt.muted, "message"))
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	logger, err := New(config.LogConfig{Disabled: true, Level: "debug"})
	require.NoError(t, err)
	assert.Nil(t, logger.Check(zapcore.ErrorLevel, "message"))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.ErrorContains(t, err, "invalid log level")
}
