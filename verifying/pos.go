package verifying

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/persistence"
	"github.com/spacemeshos/post-engine/shared"
)

// ErrInvalidPos is returned when persisted labels differ from the ones derived from the commitment.
var ErrInvalidPos = errors.New("invalid POS")

// DefaultFraction is the percentage of labels checked per file.
const DefaultFraction = 5.0

type posOption struct {
	fromFile *uint32
	toFile   *uint32
	fraction float64
	logger   *zap.Logger
}

type VerifyPosOptionsFunc func(*posOption) error

func FromFile(fromFile uint32) VerifyPosOptionsFunc {
	return func(o *posOption) error {
		o.fromFile = &fromFile
		return nil
	}
}

func ToFile(toFile uint32) VerifyPosOptionsFunc {
	return func(o *posOption) error {
		o.toFile = &toFile
		return nil
	}
}

// WithFraction sets the percentage of labels checked in every file, in (0, 100].
func WithFraction(fraction float64) VerifyPosOptionsFunc {
	return func(o *posOption) error {
		if !(fraction > 0 && fraction <= 100) {
			return fmt.Errorf("%w: fraction must be in (0, 100], given %v", shared.ErrInvalidArgument, fraction)
		}
		o.fraction = fraction
		return nil
	}
}

func VerifyPosWithLogger(logger *zap.Logger) VerifyPosOptionsFunc {
	return func(o *posOption) error {
		o.logger = logger
		return nil
	}
}

// VerifyPos re-derives a random sample of the labels stored in dataDir and compares them
// with the persisted ones. The label scheme and its parameters are taken from the metadata.
func VerifyPos(dataDir string, opts ...VerifyPosOptionsFunc) error {
	options := &posOption{
		fraction: DefaultFraction,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return err
		}
	}

	m, err := initialization.LoadMetadata(dataDir)
	if err != nil {
		return err
	}

	cfg := config.Config{LabelsPerUnit: m.LabelsPerUnit}
	initOpts := config.InitOpts{NumUnits: m.NumUnits, MaxFileSize: m.MaxFileSize}
	layout := config.DeriveFilesLayout(cfg, initOpts)
	if layout.NumFiles == 0 {
		return fmt.Errorf("%w: metadata describes no labels", shared.ErrInvalidArgument)
	}

	fromFile := uint32(0)
	if options.fromFile != nil {
		fromFile = *options.fromFile
	}
	toFile := uint32(layout.NumFiles - 1)
	if options.toFile != nil {
		toFile = *options.toFile
	}
	if fromFile > toFile || toFile >= uint32(layout.NumFiles) {
		return fmt.Errorf("%w: invalid file range [%d, %d] for %d files", shared.ErrInvalidArgument, fromFile, toFile, layout.NumFiles)
	}

	numLabels := initOpts.NumLabels(cfg)
	var scrypt *shared.ScryptParams
	if m.LabelScheme == shared.LabelSchemeScrypt {
		scrypt = &m.Scrypt
	}
	labelAt, err := newLabelFunc(shared.CommitmentBytes(m.NodeId, m.CommitmentAtxId), numLabels, scrypt)
	if err != nil {
		return err
	}

	for i := fromFile; i <= toFile; i++ {
		first, last := layout.FileRange(int(i))
		if err := verifyFile(dataDir, int(i), first, last, options, labelAt); err != nil {
			return err
		}
	}
	return nil
}

func verifyFile(dataDir string, index int, first, last uint64, opts *posOption, labelAt func(uint64) ([]byte, error)) error {
	name := filepath.Join(dataDir, persistence.InitFileName(index))
	logger := opts.logger.With(zap.String("file", name))

	reader, err := persistence.NewFileReader(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPos, err)
	}
	defer reader.Close()

	fileNumLabels := last - first + 1
	numLabels, err := reader.NumLabels()
	if err != nil {
		return err
	}
	if numLabels != fileNumLabels {
		return fmt.Errorf("%w: %s holds %d labels, expected %d", ErrInvalidPos, name, numLabels, fileNumLabels)
	}

	samples := uint64(math.Ceil(float64(fileNumLabels) * opts.fraction / 100))
	samples = min(samples, fileNumLabels)
	logger.Info("verifying: checking labels", zap.Uint64("samples", samples), zap.Uint64("labels", fileNumLabels))

	stored := make([]byte, shared.LabelLength)
	for s := uint64(0); s < samples; s++ {
		offset := rand.Uint64N(fileNumLabels)
		if _, err := reader.ReadAt(stored, int64(offset*shared.LabelLength)); err != nil {
			return fmt.Errorf("reading label %d of %s: %w", offset, name, err)
		}
		expected, err := labelAt(first + offset)
		if err != nil {
			return err
		}
		if !bytes.Equal(stored, expected) {
			logger.Error("verifying: label mismatch",
				zap.Uint64("index", first+offset),
				zap.Stringer("stored", shared.HexEncoded(stored)),
				zap.Stringer("expected", shared.HexEncoded(expected)),
			)
			return fmt.Errorf("%w: label %d in %s does not match the commitment", ErrInvalidPos, first+offset, name)
		}
	}
	return nil
}
