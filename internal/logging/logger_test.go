package logging_test

import (
	"errors"
	"testing"

	"github.com/fivetwenty-io/apicore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = logging.New("loud")
	require.Error(t, err)
}

func TestAdapter(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	adapter := logging.NewAdapter(zap.New(core))

	adapter.Debug("HTTP Request", map[string]interface{}{"method": "GET"})
	adapter.Info("Access token refreshed", nil)
	adapter.Warn("Retrying request", map[string]interface{}{"attempt": 1})
	adapter.Error("API Response Error", map[string]interface{}{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "GET", entries[0].ContextMap()["method"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[3].ContextMap()["error"])
}

func TestAdapter_NilLogger(t *testing.T) {
	t.Parallel()

	adapter := logging.NewAdapter(nil)
	adapter.Info("ignored", map[string]interface{}{"k": "v"})
	assert.NoError(t, adapter.Sync())
}
