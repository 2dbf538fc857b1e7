package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("Console", func(t *testing.T) {
		logger, err := New("warn", "console")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("JSON", func(t *testing.T) {
		logger, err := New("debug", "json")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("BadLevel", func(t *testing.T) {
		_, err := New("loud", "console")
		assert.Error(t, err)
	})

	t.Run("BadFormat", func(t *testing.T) {
		_, err := New("info", "xml")
		assert.Error(t, err)
	})
}

func TestQuiet(t *testing.T) {
	t.Parallel()

	logger := Quiet()
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
