package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"storefront/internal/config"
)

func TestNew(t *testing.T) {
	lg, err := New(config.LogConfig{Level: "warn", Format: "console"}, "catalog-delete-sync")
	require.NoError(t, err)
	assert.False(t, lg.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, lg.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_RejectsBadSettings(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"}, "svc")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, "svc")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestFallback(t *testing.T) {
	assert.NotNil(t, Fallback("svc"))
}
