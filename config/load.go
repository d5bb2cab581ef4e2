package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "POST"

// File is the layout of a configuration file. Every section is optional and
// defaults to the values passed to LoadFile.
type File struct {
	Config  Config      `mapstructure:"post"`
	Init    InitOpts    `mapstructure:"init"`
	Proving ProvingOpts `mapstructure:"proving"`
}

// LoadFile reads a configuration file (any format supported by viper) on top of the given defaults.
// Values can be overridden with POST_ prefixed environment variables, e.g. POST_POST_K1.
func LoadFile(path string, defaults File) (File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		return File{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	out := defaults
	if err := v.Unmarshal(&out); err != nil {
		return File{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if s := v.GetString("post.pow-difficulty"); s != "" {
		d, err := ParsePowDifficulty(s)
		if err != nil {
			return File{}, err
		}
		out.Config.PowDifficulty = d
	}

	return out, nil
}

// ParsePowDifficulty decodes a hex encoded 32 byte big-endian difficulty.
func ParsePowDifficulty(s string) ([32]byte, error) {
	var d [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return d, fmt.Errorf("invalid pow difficulty: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("invalid pow difficulty length; expected: %d bytes, given: %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

func setDefaults(v *viper.Viper, d File) {
	v.SetDefault("post.min-numunits", d.Config.MinNumUnits)
	v.SetDefault("post.max-numunits", d.Config.MaxNumUnits)
	v.SetDefault("post.labels-per-unit", d.Config.LabelsPerUnit)
	v.SetDefault("post.k1", d.Config.K1)
	v.SetDefault("post.k2", d.Config.K2)
	v.SetDefault("post.k3", d.Config.K3)

	v.SetDefault("init.datadir", d.Init.DataDir)
	v.SetDefault("init.numunits", d.Init.NumUnits)
	v.SetDefault("init.max-filesize", d.Init.MaxFileSize)
	v.SetDefault("init.provider", d.Init.ProviderID)
	v.SetDefault("init.compute-batch-size", d.Init.ComputeBatchSize)

	v.SetDefault("proving.nonces", d.Proving.Nonces)
	v.SetDefault("proving.threads", d.Proving.Threads)
}
