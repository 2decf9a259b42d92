package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, zapLogger, err := New("warn", false)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.False(t, zapLogger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zapLogger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_Pretty(t *testing.T) {
	_, zapLogger, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, zapLogger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New("loud", false)
	assert.Error(t, err)
}
