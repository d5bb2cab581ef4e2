package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/compute"
)

func TestSetupLoggerRegistersBackendLog(t *testing.T) {
	logLevel = "warn"
	require.NoError(t, setupLogger())
	require.NotNil(t, logger)
	require.False(t, compute.SetLogCallback(zap.NewNop()), "backend log callback must be registered by setupLogger")

	logLevel = "verbose"
	require.Error(t, setupLogger())
}
