// Package initialization derives the labels of a node into its data directory.
package initialization

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/labels"
	"github.com/spacemeshos/post-engine/metrics"
	"github.com/spacemeshos/post-engine/persistence"
	"github.com/spacemeshos/post-engine/shared"
)

type (
	Config              = config.Config
	InitOpts            = config.InitOpts
	ConfigMismatchError = shared.ConfigMismatchError
)

// throttleDelay is the pause between two batches of a throttled initialization.
const throttleDelay = 10 * time.Millisecond

var (
	ErrAlreadyInitializing          = errors.New("already initializing")
	ErrCannotResetWhileInitializing = errors.New("cannot reset while initializing")
	ErrNotEnoughSpace               = errors.New("not enough disk space")
)

type Status int

const (
	StatusNotStarted Status = iota
	StatusStarted
	StatusInitializing
	StatusCompleted
	StatusError
)

type option struct {
	nodeId          []byte
	commitmentAtxId []byte

	cfg         *Config
	initOpts    *InitOpts
	labelScheme string
	enumerator  *compute.Enumerator

	logger *zap.Logger
}

func (o *option) validate() error {
	if o.nodeId == nil {
		return errors.New("`nodeId` is required")
	}

	if o.commitmentAtxId == nil {
		return errors.New("`commitmentAtxId` is required")
	}

	if o.cfg == nil {
		return errors.New("no config provided")
	}

	if o.initOpts == nil {
		return errors.New("no init options provided")
	}

	if err := config.Validate(*o.cfg, *o.initOpts); err != nil {
		return err
	}

	return nil
}

type OptionFunc func(*option) error

// WithNodeId sets the ID of the Node.
func WithNodeId(nodeId []byte) OptionFunc {
	return func(opts *option) error {
		if len(nodeId) != 32 {
			return fmt.Errorf("%w: invalid `nodeId` length; expected: 32, given: %v", shared.ErrInvalidArgument, len(nodeId))
		}

		opts.nodeId = nodeId
		return nil
	}
}

// WithCommitmentAtxId sets the ID of the CommitmentATX.
func WithCommitmentAtxId(id []byte) OptionFunc {
	return func(opts *option) error {
		if len(id) != 32 {
			return fmt.Errorf("%w: invalid `commitmentAtxId` length; expected: 32, given: %v", shared.ErrInvalidArgument, len(id))
		}

		opts.commitmentAtxId = id
		return nil
	}
}

// WithInitOpts sets the options for the initialization.
func WithInitOpts(initOpts InitOpts) OptionFunc {
	return func(opts *option) error {
		opts.initOpts = &initOpts
		return nil
	}
}

// WithConfig sets the config for the initialization.
func WithConfig(cfg Config) OptionFunc {
	return func(opts *option) error {
		opts.cfg = &cfg
		return nil
	}
}

// WithLabelScheme selects how labels are derived. Defaults to the keystream scheme.
func WithLabelScheme(scheme string) OptionFunc {
	return func(opts *option) error {
		switch scheme {
		case shared.LabelSchemeKeystream, shared.LabelSchemeScrypt:
		default:
			return fmt.Errorf("%w: unknown label scheme %q", shared.ErrInvalidArgument, scheme)
		}
		opts.labelScheme = scheme
		return nil
	}
}

// WithEnumerator sets the source of compute providers. Defaults to CPU only.
func WithEnumerator(e *compute.Enumerator) OptionFunc {
	return func(opts *option) error {
		opts.enumerator = e
		return nil
	}
}

// WithLogger sets the logger for the initialization.
func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opts *option) error {
		opts.logger = logger
		return nil
	}
}

// Initializer is responsible for initializing a new PoST commitment.
type Initializer struct {
	nodeId          []byte
	commitmentAtxId []byte
	commitment      []byte

	numLabelsWritten atomic.Uint64

	cfg         Config
	opts        InitOpts
	labelScheme string
	enumerator  *compute.Enumerator

	nonceMtx   sync.RWMutex
	nonce      *uint64
	nonceValue []byte

	mtx sync.Mutex // holds the lock while initializing

	logger *zap.Logger
}

func NewInitializer(opts ...OptionFunc) (*Initializer, error) {
	options := &option{
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if err := options.validate(); err != nil {
		return nil, err
	}

	enumerator := options.enumerator
	if enumerator == nil {
		var err error
		enumerator, err = compute.NewEnumerator(compute.WithLogger(options.logger))
		if err != nil {
			return nil, err
		}
	}

	return &Initializer{
		nodeId:          options.nodeId,
		commitmentAtxId: options.commitmentAtxId,
		commitment:      shared.CommitmentBytes(options.nodeId, options.commitmentAtxId),
		cfg:             *options.cfg,
		opts:            *options.initOpts,
		labelScheme:     options.labelScheme,
		enumerator:      enumerator,
		logger:          options.logger,
	}, nil
}

// Initialize is the process in which the prover commits to store some data, by having its storage filled with
// pseudo-random data with respect to a specific id. This data is the result of a computationally-expensive operation.
// An interrupted initialization continues where it stopped when called again.
func (init *Initializer) Initialize(ctx context.Context) (err error) {
	if !init.mtx.TryLock() {
		return ErrAlreadyInitializing
	}
	defer init.mtx.Unlock()
	defer func() {
		metrics.InitResults.WithLabelValues(ResultFromError(err, init.Nonce()).String()).Inc()
	}()

	layout := config.DeriveFilesLayout(init.cfg, init.opts)
	numLabels := init.opts.NumLabels(init.cfg)

	if err := init.prepareDataDir(numLabels); err != nil {
		return err
	}

	provider, err := init.provider(ctx)
	if err != nil {
		return err
	}

	labeler, err := NewLabeler(init.labelScheme, init.commitment, numLabels, init.cfg.Scrypt)
	if err != nil {
		return err
	}

	if err := init.saveMetadata(); err != nil {
		return err
	}

	fromFile, toFile := init.fileRange(layout)
	init.logger.Info("initialization: starting to write files",
		zap.Int("from", fromFile),
		zap.Int("to", toFile),
		zap.Uint32("numUnits", init.opts.NumUnits),
		zap.Uint64("labelsPerUnit", init.cfg.LabelsPerUnit),
		zap.String("maxFileSize", bytefmt.ByteSize(init.opts.MaxFileSize)),
		zap.String("provider", provider.Model),
		zap.String("datadir", init.opts.DataDir),
	)

	for i := fromFile; i <= toFile; i++ {
		if err := init.initFile(ctx, provider, labeler, layout, i); err != nil {
			return err
		}
	}

	if nonce := init.Nonce(); nonce != nil {
		init.logger.Info("initialization: completed", zap.Uint64("nonce", *nonce))
	} else {
		init.logger.Info("initialization: completed, no nonce found")
	}
	return nil
}

func (init *Initializer) fileRange(layout config.FilesLayout) (int, int) {
	from := init.opts.FromFileIdx
	to := int(layout.NumFiles) - 1
	if init.opts.ToFileIdx != nil && *init.opts.ToFileIdx < to {
		to = *init.opts.ToFileIdx
	}
	return from, to
}

// prepareDataDir checks that the data directory belongs to this initialization and has room for it.
func (init *Initializer) prepareDataDir(numLabels uint64) error {
	if err := os.MkdirAll(init.opts.DataDir, shared.OwnerReadWriteExec); err != nil {
		return fmt.Errorf("dir creation failure: %w", err)
	}

	m, err := LoadMetadata(init.opts.DataDir)
	switch {
	case errors.Is(err, ErrStateMetadataFileMissing):
		written, err := persistence.NumBytesWritten(init.opts.DataDir)
		if err != nil {
			return err
		}
		if written > 0 {
			return fmt.Errorf("%w: data directory holds labels but no metadata", ErrStateMetadataFileMissing)
		}
	case err != nil:
		return err
	default:
		if err := init.verifyMetadata(m); err != nil {
			return err
		}
		init.nonceMtx.Lock()
		init.nonce = m.Nonce
		init.nonceValue = m.NonceValue
		init.nonceMtx.Unlock()
	}

	written, err := persistence.NumBytesWritten(init.opts.DataDir)
	if err != nil {
		return err
	}
	required := numLabels * shared.LabelLength
	if required > written {
		available := shared.AvailableSpace(init.opts.DataDir)
		if missing := required - written; missing > available {
			return fmt.Errorf("%w: required %s, available %s", ErrNotEnoughSpace,
				bytefmt.ByteSize(missing), bytefmt.ByteSize(available))
		}
	}
	return nil
}

func (init *Initializer) provider(ctx context.Context) (compute.Provider, error) {
	if init.opts.ProviderID == config.BestProviderID {
		return init.enumerator.Best(ctx)
	}
	return init.enumerator.Lookup(ctx, uint32(init.opts.ProviderID))
}

func (init *Initializer) initFile(ctx context.Context, provider compute.Provider, labeler labels.Labeler, layout config.FilesLayout, fileIndex int) error {
	first, last := layout.FileRange(fileIndex)
	fileNumLabels := last - first + 1
	logger := init.logger.With(zap.Int("fileIndex", fileIndex), zap.Uint64("startPosition", first))

	writer, err := persistence.NewLabelsWriter(init.opts.DataDir, fileIndex)
	if err != nil {
		return err
	}
	defer writer.Close()

	numLabelsWritten, err := writer.NumLabelsWritten()
	if err != nil {
		return err
	}

	switch {
	case numLabelsWritten == fileNumLabels:
		logger.Info("initialization: file already initialized", zap.Uint64("numLabels", numLabelsWritten))
		init.numLabelsWritten.Add(numLabelsWritten)
		return nil
	case numLabelsWritten > fileNumLabels:
		logger.Info("initialization: truncating file",
			zap.Uint64("numLabels", numLabelsWritten),
			zap.Uint64("targetNumLabels", fileNumLabels),
		)
		if err := writer.Truncate(fileNumLabels); err != nil {
			return err
		}
		init.numLabelsWritten.Add(fileNumLabels)
		return nil
	case numLabelsWritten > 0:
		logger.Info("initialization: continuing to write file",
			zap.Uint64("numLabels", numLabelsWritten),
			zap.Uint64("targetNumLabels", fileNumLabels),
		)
		init.numLabelsWritten.Add(numLabelsWritten)
	default:
		logger.Info("initialization: starting to write file", zap.Uint64("targetNumLabels", fileNumLabels))
	}

	batchSize := init.opts.ComputeBatchSize
	outputChan := make(chan []byte, 16)
	eg, egCtx := errgroup.WithContext(ctx)

	// Start compute worker.
	eg.Go(func() error {
		defer close(outputChan)

		for currentPosition := numLabelsWritten; currentPosition < fileNumLabels; {
			// The last batch might need to be smaller.
			size := min(batchSize, fileNumLabels-currentPosition)
			start := first + currentPosition
			end := start + size - 1

			output, nonce, res := ComputeLabels(egCtx, provider, labeler, start, end)
			if err := InitResultToError(res); err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				return fmt.Errorf("failed to compute labels [%d, %d]: %w", start, end, err)
			}

			if nonce != nil {
				if err := init.updateNonce(*nonce, output[(*nonce-start)*shared.LabelLength:][:shared.LabelLength]); err != nil {
					return err
				}
			}

			select {
			case outputChan <- output:
			case <-egCtx.Done():
				return egCtx.Err()
			}
			currentPosition += size

			if init.opts.Throttle {
				time.Sleep(throttleDelay)
			}
		}
		return nil
	})

	// Start IO worker.
	eg.Go(func() error {
		for batch := range outputChan {
			if err := writer.Write(batch); err != nil {
				return err
			}
			n := uint64(len(batch) / shared.LabelLength)
			init.numLabelsWritten.Add(n)
			metrics.LabelsWritten.Add(float64(n))
		}
		return writer.Flush()
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	numLabelsWritten, err = writer.NumLabelsWritten()
	if err != nil {
		return err
	}

	logger.Info("initialization: file completed", zap.Uint64("numLabels", numLabelsWritten))
	return nil
}

// updateNonce records nonce if it precedes the current one and persists it right away,
// so an interrupted initialization does not lose it.
func (init *Initializer) updateNonce(nonce uint64, value []byte) error {
	init.nonceMtx.Lock()
	if init.nonce != nil && *init.nonce <= nonce {
		init.nonceMtx.Unlock()
		return nil
	}
	init.nonce = &nonce
	init.nonceValue = bytes.Clone(value)
	init.nonceMtx.Unlock()

	init.logger.Info("found nonce: updating postdata_metadata.json",
		zap.Uint64("nonce", nonce),
		zap.Stringer("nonceValue", shared.HexEncoded(value)),
	)
	return init.saveMetadata()
}

// Nonce returns the nonce found so far, if any.
func (init *Initializer) Nonce() *uint64 {
	init.nonceMtx.RLock()
	defer init.nonceMtx.RUnlock()
	if init.nonce == nil {
		return nil
	}
	nonce := *init.nonce
	return &nonce
}

// NonceValue returns the label at the nonce.
func (init *Initializer) NonceValue() []byte {
	init.nonceMtx.RLock()
	defer init.nonceMtx.RUnlock()
	return bytes.Clone(init.nonceValue)
}

// SessionNumLabelsWritten returns the number of labels present in the files handled so far by the running
// or last initialization.
func (init *Initializer) SessionNumLabelsWritten() uint64 {
	return init.numLabelsWritten.Load()
}

func (init *Initializer) Status() Status {
	if !init.mtx.TryLock() {
		return StatusInitializing
	}
	defer init.mtx.Unlock()

	written, err := persistence.NumBytesWritten(init.opts.DataDir)
	if err != nil {
		return StatusError
	}
	switch {
	case written == 0:
		return StatusNotStarted
	case written/shared.LabelLength == init.opts.NumLabels(init.cfg):
		return StatusCompleted
	default:
		return StatusStarted
	}
}

// Reset deletes the label files and the metadata of the data directory.
func (init *Initializer) Reset() error {
	if !init.mtx.TryLock() {
		return ErrCannotResetWhileInitializing
	}
	defer init.mtx.Unlock()

	files, err := persistence.InitFiles(init.opts.DataDir)
	if err != nil {
		return err
	}
	for _, file := range files {
		path := filepath.Join(init.opts.DataDir, file.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete file (%v): %w", path, err)
		}
	}

	path := filepath.Join(init.opts.DataDir, MetadataFileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file (%v): %w", path, err)
	}

	init.nonceMtx.Lock()
	init.nonce = nil
	init.nonceValue = nil
	init.nonceMtx.Unlock()
	init.numLabelsWritten.Store(0)
	return nil
}

func (init *Initializer) verifyMetadata(m *shared.PostMetadata) error {
	if !bytes.Equal(init.nodeId, m.NodeId) {
		return ConfigMismatchError{
			Param:    "NodeId",
			Expected: fmt.Sprintf("%x", init.nodeId),
			Found:    fmt.Sprintf("%x", m.NodeId),
			DataDir:  init.opts.DataDir,
		}
	}

	if !bytes.Equal(init.commitmentAtxId, m.CommitmentAtxId) {
		return ConfigMismatchError{
			Param:    "CommitmentAtxId",
			Expected: fmt.Sprintf("%x", init.commitmentAtxId),
			Found:    fmt.Sprintf("%x", m.CommitmentAtxId),
			DataDir:  init.opts.DataDir,
		}
	}

	if init.cfg.LabelsPerUnit != m.LabelsPerUnit {
		return ConfigMismatchError{
			Param:    "LabelsPerUnit",
			Expected: fmt.Sprintf("%d", init.cfg.LabelsPerUnit),
			Found:    fmt.Sprintf("%d", m.LabelsPerUnit),
			DataDir:  init.opts.DataDir,
		}
	}

	if init.opts.MaxFileSize != m.MaxFileSize {
		return ConfigMismatchError{
			Param:    "MaxFileSize",
			Expected: fmt.Sprintf("%d", init.opts.MaxFileSize),
			Found:    fmt.Sprintf("%d", m.MaxFileSize),
			DataDir:  init.opts.DataDir,
		}
	}

	// Growing the number of units extends the data, shrinking it is not supported.
	if init.opts.NumUnits < m.NumUnits {
		return ConfigMismatchError{
			Param:    "NumUnits",
			Expected: fmt.Sprintf(">= %d", m.NumUnits),
			Found:    fmt.Sprintf("%d", init.opts.NumUnits),
			DataDir:  init.opts.DataDir,
		}
	}

	if init.labelScheme != m.LabelScheme {
		return ConfigMismatchError{
			Param:    "LabelScheme",
			Expected: fmt.Sprintf("%q", init.labelScheme),
			Found:    fmt.Sprintf("%q", m.LabelScheme),
			DataDir:  init.opts.DataDir,
		}
	}

	if init.labelScheme == shared.LabelSchemeScrypt && init.cfg.Scrypt != m.Scrypt {
		return ConfigMismatchError{
			Param:    "Scrypt",
			Expected: fmt.Sprintf("%+v", init.cfg.Scrypt),
			Found:    fmt.Sprintf("%+v", m.Scrypt),
			DataDir:  init.opts.DataDir,
		}
	}

	return nil
}

func (init *Initializer) saveMetadata() error {
	v := shared.PostMetadata{
		Version:         1,
		NodeId:          init.nodeId,
		CommitmentAtxId: init.commitmentAtxId,
		LabelsPerUnit:   init.cfg.LabelsPerUnit,
		NumUnits:        init.opts.NumUnits,
		MaxFileSize:     init.opts.MaxFileSize,
		Scrypt:          init.cfg.Scrypt,
		LabelScheme:     init.labelScheme,
	}

	init.nonceMtx.RLock()
	v.Nonce = init.nonce
	v.NonceValue = init.nonceValue
	init.nonceMtx.RUnlock()

	return SaveMetadata(init.opts.DataDir, &v)
}
