package verifying_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/persistence"
	"github.com/spacemeshos/post-engine/shared"
	"github.com/spacemeshos/post-engine/verifying"
)

func Test_VerifyPos(t *testing.T) {
	cfg, opts := getTestConfig(t)
	initData(t, cfg, opts)
	logger := verifying.VerifyPosWithLogger(zaptest.NewLogger(t))

	require.NoError(t, verifying.VerifyPos(opts.DataDir, logger))
	require.NoError(t, verifying.VerifyPos(opts.DataDir, logger, verifying.WithFraction(100)))
	require.NoError(t, verifying.VerifyPos(opts.DataDir, logger, verifying.FromFile(1), verifying.ToFile(2)))

	t.Run("invalid fraction", func(t *testing.T) {
		for _, fraction := range []float64{0, -1, 100.5} {
			err := verifying.VerifyPos(opts.DataDir, verifying.WithFraction(fraction))
			require.ErrorIs(t, err, shared.ErrInvalidArgument)
		}
	})

	t.Run("invalid file range", func(t *testing.T) {
		err := verifying.VerifyPos(opts.DataDir, verifying.FromFile(2), verifying.ToFile(1))
		require.ErrorIs(t, err, shared.ErrInvalidArgument)

		err = verifying.VerifyPos(opts.DataDir, verifying.ToFile(4))
		require.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("missing metadata", func(t *testing.T) {
		err := verifying.VerifyPos(t.TempDir())
		require.ErrorIs(t, err, initialization.ErrStateMetadataFileMissing)
	})
}

func Test_VerifyPos_Corrupted(t *testing.T) {
	cfg, opts := getTestConfig(t)
	initData(t, cfg, opts)

	name := filepath.Join(opts.DataDir, persistence.InitFileName(1))
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	data[5*shared.LabelLength+3] ^= 0xFF
	require.NoError(t, os.WriteFile(name, data, 0o644))

	logger := verifying.VerifyPosWithLogger(zaptest.NewLogger(t))
	err = verifying.VerifyPos(opts.DataDir, logger, verifying.WithFraction(100))
	require.ErrorIs(t, err, verifying.ErrInvalidPos)

	// Other files are intact.
	require.NoError(t, verifying.VerifyPos(opts.DataDir, logger, verifying.WithFraction(100), verifying.ToFile(0)))

	require.NoError(t, os.WriteFile(name, data[:len(data)-shared.LabelLength], 0o644))
	err = verifying.VerifyPos(opts.DataDir, logger, verifying.FromFile(1), verifying.ToFile(1))
	require.ErrorIs(t, err, verifying.ErrInvalidPos)

	require.NoError(t, os.Remove(name))
	err = verifying.VerifyPos(opts.DataDir, logger, verifying.FromFile(1), verifying.ToFile(1))
	require.ErrorIs(t, err, verifying.ErrInvalidPos)
}

func Test_VerifyPos_ScryptLabels(t *testing.T) {
	cfg, opts := getTestConfig(t)
	cfg.Scrypt = shared.ScryptParams{N: 2, R: 1, P: 1}
	initData(t, cfg, opts, initialization.WithLabelScheme(shared.LabelSchemeScrypt))

	logger := verifying.VerifyPosWithLogger(zaptest.NewLogger(t))
	require.NoError(t, verifying.VerifyPos(opts.DataDir, logger, verifying.WithFraction(100)))
}
