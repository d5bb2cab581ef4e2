package config

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/shared"
)

const (
	DefaultDataDirName = "data"

	DefaultComputeBatchSize = 1 << 14

	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB

	DefaultMaxFileSize = 4 * GiB
	MinFileSize        = 1024

	// BestProviderID selects the first GPU provider if one exists, the CPU provider otherwise.
	BestProviderID = -1
)

var DefaultDataDir string

func init() {
	home, _ := os.UserHomeDir()
	DefaultDataDir = filepath.Join(home, "post", DefaultDataDirName)
}

// Config holds the protocol parameters. Provers and verifiers of the same network must agree on them.
type Config struct {
	MinNumUnits   uint32 `mapstructure:"min-numunits"`
	MaxNumUnits   uint32 `mapstructure:"max-numunits"`
	LabelsPerUnit uint64 `mapstructure:"labels-per-unit"`

	K1 uint32 `mapstructure:"k1"` // K1 specifies the difficulty for a label to be a candidate for a proof.
	K2 uint32 `mapstructure:"k2"` // K2 is the number of labels below the required difficulty required for a proof.
	K3 uint32 `mapstructure:"k3"` // K3 is the size of the subset of proof indices that is validated.

	PowDifficulty [32]byte `mapstructure:"-"`

	Scrypt shared.ScryptParams `mapstructure:"scrypt"`
	Oracle oracle.Params       `mapstructure:"oracle"`
}

// InitOpts are the node-local options of the initialization.
type InitOpts struct {
	DataDir     string `mapstructure:"datadir"`
	NumUnits    uint32 `mapstructure:"numunits"`
	MaxFileSize uint64 `mapstructure:"max-filesize"`
	ProviderID  int64  `mapstructure:"provider"`
	Throttle    bool   `mapstructure:"throttle"`

	// ComputeBatchSize must be greater than 0
	ComputeBatchSize uint64 `mapstructure:"compute-batch-size"`

	FromFileIdx int  `mapstructure:"-"`
	ToFileIdx   *int `mapstructure:"-"`
}

// ProvingOpts are the node-local options of proof generation.
type ProvingOpts struct {
	// Nonces is the number of nonces tried per pass over the data. It is rounded up to a multiple of 16.
	Nonces uint32 `mapstructure:"nonces"`
	// Threads is the number of label workers. 0 means one per CPU.
	Threads uint `mapstructure:"threads"`
	// Flags are the oracle flags used for the proof of work and the label scores.
	Flags oracle.Flags `mapstructure:"flags"`
}

// MainnetConfig returns the default config for mainnet.
func MainnetConfig() Config {
	cfg := Config{
		MinNumUnits:   4,
		MaxNumUnits:   1048576,    // max post size 64 PiB
		LabelsPerUnit: 4294967296, // 64GiB units
		K1:            26,
		K2:            37,
		K3:            37,
		Scrypt:        DefaultLabelParams(),
		Oracle:        oracle.DefaultParams(),
	}
	if _, err := hex.Decode(cfg.PowDifficulty[:], []byte("00037ec8ec25e6d2c00000000000000000000000000000000000000000000000")); err != nil {
		panic(err)
	}
	return cfg
}

// DefaultConfig returns the default config. These are intended for testing.
func DefaultConfig() Config {
	cfg := Config{
		MinNumUnits:   1,
		MaxNumUnits:   100,
		LabelsPerUnit: 512, // 8kB units
		K1:            26,
		K2:            37,
		K3:            37,
		Scrypt:        DefaultLabelParams(),
		Oracle:        oracle.TestParams(),
	}
	for i := range cfg.PowDifficulty {
		cfg.PowDifficulty[i] = 0xFF
	}
	return cfg
}

func DefaultLabelParams() shared.ScryptParams {
	return shared.ScryptParams{
		N: 8192,
		R: 1,
		P: 1,
	}
}

// MainnetInitOpts returns the default InitOpts for mainnet.
func MainnetInitOpts() InitOpts {
	return InitOpts{
		DataDir:          DefaultDataDir,
		NumUnits:         4,
		MaxFileSize:      DefaultMaxFileSize,
		ProviderID:       BestProviderID,
		ComputeBatchSize: DefaultComputeBatchSize,
	}
}

// DefaultInitOpts returns the default InitOpts. These are intended for testing.
func DefaultInitOpts() InitOpts {
	return InitOpts{
		DataDir:          DefaultDataDir,
		NumUnits:         2,
		MaxFileSize:      DefaultMaxFileSize,
		ProviderID:       BestProviderID,
		ComputeBatchSize: DefaultComputeBatchSize,
	}
}

func DefaultProvingOpts() ProvingOpts {
	return ProvingOpts{
		Nonces:  16,
		Threads: 0,
		Flags:   oracle.RecommendedFlags(),
	}
}

// NumLabels returns the total number of labels of the given init options.
func (o InitOpts) NumLabels(cfg Config) uint64 {
	return cfg.LabelsPerUnit * uint64(o.NumUnits)
}

// TotalFiles returns the number of files the initialization is split into.
func (o InitOpts) TotalFiles(labelsPerUnit uint64) int {
	return int(DeriveFilesLayout(Config{LabelsPerUnit: labelsPerUnit}, o).NumFiles)
}

// ValidateConfig checks the protocol parameters on their own.
func ValidateConfig(cfg Config) error {
	if cfg.K1 == 0 {
		return fmt.Errorf("invalid `cfg.K1`; expected: > 0, given: %d", cfg.K1)
	}

	if cfg.K2 == 0 {
		return fmt.Errorf("invalid `cfg.K2`; expected: > 0, given: %d", cfg.K2)
	}

	if cfg.K3 > cfg.K2 {
		return fmt.Errorf("invalid `cfg.K3`; expected: <= cfg.K2 (%d), given: %d", cfg.K2, cfg.K3)
	}

	if cfg.LabelsPerUnit == 0 {
		return fmt.Errorf("invalid `cfg.LabelsPerUnit`; expected: > 0, given: %d", cfg.LabelsPerUnit)
	}

	if err := cfg.Scrypt.Validate(); err != nil {
		return fmt.Errorf("invalid `cfg.Scrypt`: %w", err)
	}

	if err := cfg.Oracle.Validate(); err != nil {
		return fmt.Errorf("invalid `cfg.Oracle`: %w", err)
	}

	return nil
}

func Validate(cfg Config, opts InitOpts) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	if opts.NumUnits < cfg.MinNumUnits {
		return fmt.Errorf("invalid `opts.NumUnits`; expected: >= %d, given: %d", cfg.MinNumUnits, opts.NumUnits)
	}

	if opts.NumUnits > cfg.MaxNumUnits {
		return fmt.Errorf("invalid `opts.NumUnits`; expected: <= %d, given: %d", cfg.MaxNumUnits, opts.NumUnits)
	}

	if opts.MaxFileSize < MinFileSize {
		return fmt.Errorf("invalid `opts.MaxFileSize`; expected: >= %d, given: %d", MinFileSize, opts.MaxFileSize)
	}

	if opts.ComputeBatchSize == 0 {
		return fmt.Errorf("invalid `opts.ComputeBatchSize` expected: > 0, given: %d", opts.ComputeBatchSize)
	}

	if opts.ProviderID < BestProviderID || opts.ProviderID > math.MaxUint32 {
		return fmt.Errorf("invalid `opts.ProviderID`; expected: -1 or a provider id, given: %d", opts.ProviderID)
	}

	if hi, _ := bits.Mul64(cfg.LabelsPerUnit, uint64(opts.NumUnits)); hi != 0 {
		return fmt.Errorf("uint64 overflow: `cfg.LabelsPerUnit` (%v) * `opts.NumUnits` (%v) exceeds the range allowed by uint64",
			cfg.LabelsPerUnit, opts.NumUnits)
	}

	numLabels := cfg.LabelsPerUnit * uint64(opts.NumUnits)
	if numLabels <= uint64(cfg.K1) {
		return fmt.Errorf("invalid `cfg.K1`; expected: < number of labels (%d), given: %d", numLabels, cfg.K1)
	}

	return nil
}
