package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/config"
)

func TestOptsValidateScryptParams(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	opts := config.DefaultInitOpts()

	require.NoError(t, config.Validate(cfg, opts))

	cfg.Scrypt.N = 0
	require.Error(t, config.Validate(cfg, opts))
}

func TestValidateK3(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	cfg.K3 = cfg.K2 + 1
	require.ErrorContains(t, config.ValidateConfig(cfg), "cfg.K3")
}

func TestValidateNumUnits(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	opts := config.DefaultInitOpts()

	opts.NumUnits = cfg.MinNumUnits - 1
	require.ErrorContains(t, config.Validate(cfg, opts), "opts.NumUnits")

	opts.NumUnits = cfg.MaxNumUnits + 1
	require.ErrorContains(t, config.Validate(cfg, opts), "opts.NumUnits")
}

func TestValidateMaxFileSize(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	opts := config.DefaultInitOpts()

	opts.MaxFileSize = config.MinFileSize - 1
	require.ErrorContains(t, config.Validate(cfg, opts), "opts.MaxFileSize")
}

func TestValidateK1(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	opts := config.DefaultInitOpts()

	cfg.K1 = uint32(cfg.LabelsPerUnit) * opts.NumUnits
	require.ErrorContains(t, config.Validate(cfg, opts), "cfg.K1")

	cfg.K1 = 0
	require.ErrorContains(t, config.ValidateConfig(cfg), "cfg.K1")
	require.ErrorContains(t, config.Validate(cfg, opts), "cfg.K1")
}

func TestMainnetConfig(t *testing.T) {
	t.Parallel()
	cfg := config.MainnetConfig()
	require.NoError(t, config.Validate(cfg, config.MainnetInitOpts()))
	require.EqualValues(t, 0x03, cfg.PowDifficulty[1])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "post.yaml")
	content := `
post:
  k1: 4096
  k2: 50
  k3: 10
  pow-difficulty: "00ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
init:
  numunits: 3
  datadir: /tmp/post
proving:
  nonces: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	defaults := config.File{
		Config:  config.DefaultConfig(),
		Init:    config.DefaultInitOpts(),
		Proving: config.DefaultProvingOpts(),
	}
	f, err := config.LoadFile(path, defaults)
	require.NoError(t, err)

	require.EqualValues(t, 4096, f.Config.K1)
	require.EqualValues(t, 50, f.Config.K2)
	require.EqualValues(t, 10, f.Config.K3)
	require.EqualValues(t, 0x00, f.Config.PowDifficulty[0])
	require.EqualValues(t, 0xff, f.Config.PowDifficulty[1])
	require.Equal(t, defaults.Config.LabelsPerUnit, f.Config.LabelsPerUnit)
	require.Equal(t, defaults.Config.Scrypt, f.Config.Scrypt)

	require.EqualValues(t, 3, f.Init.NumUnits)
	require.Equal(t, "/tmp/post", f.Init.DataDir)
	require.EqualValues(t, 64, f.Proving.Nonces)
}

func TestParsePowDifficulty(t *testing.T) {
	_, err := config.ParsePowDifficulty("00ff")
	require.Error(t, err)

	_, err = config.ParsePowDifficulty("zz")
	require.Error(t, err)
}
