package compute

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogCallbackFirstWins(t *testing.T) {
	core1, logs1 := observer.New(zapcore.InfoLevel)
	core2, logs2 := observer.New(zapcore.DebugLevel)

	require.True(t, SetLogCallback(zap.New(core1)))
	require.False(t, SetLogCallback(zap.New(core2)))

	Log(LevelInfo, "hello", zap.Int("n", 1))
	Log(LevelError, "failure")

	require.Equal(t, 2, logs1.Len())
	require.Zero(t, logs2.Len())

	entries := logs1.AllUntimed()
	require.Equal(t, "hello", entries[0].Message)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "backend", entries[0].LoggerName)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
