package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/shared"
)

func TestDeriveFilesLayout(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := config.DefaultInitOpts()
	opts.NumUnits = 3
	opts.MaxFileSize = 100 * shared.LabelLength

	// 3 * 512 labels split into files of 100 labels.
	layout := config.DeriveFilesLayout(cfg, opts)
	require.EqualValues(t, 16, layout.NumFiles)
	require.EqualValues(t, 100, layout.FileNumLabels)
	require.EqualValues(t, 36, layout.LastFileNumLabels)

	first, last := layout.FileRange(0)
	require.EqualValues(t, 0, first)
	require.EqualValues(t, 99, last)

	first, last = layout.FileRange(15)
	require.EqualValues(t, 1500, first)
	require.EqualValues(t, 1535, last)

	require.Equal(t, 16, opts.TotalFiles(cfg.LabelsPerUnit))
}

func TestDeriveFilesLayoutSingleFile(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := config.DefaultInitOpts()

	layout := config.DeriveFilesLayout(cfg, opts)
	require.EqualValues(t, 1, layout.NumFiles)
	require.EqualValues(t, 1024, layout.LastFileNumLabels)
}
