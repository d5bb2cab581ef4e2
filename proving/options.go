package proving

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/initialization"
	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/persistence"
	"github.com/spacemeshos/post-engine/shared"
)

// LabelSource opens a fresh reader over all labels in ascending index order.
// It is called once per pass over the data.
type LabelSource func() (io.ReadCloser, error)

// maxNonces is the size of the nonce space.
const maxNonces = uint64(1) << 32

type option struct {
	source LabelSource

	nodeId          []byte
	commitmentAtxId []byte
	numUnits        uint32

	nonceStart    uint32
	nonceCount    uint64
	noncesPerPass uint32
	threads       uint
	powCreator    []byte
	progress      func(labelsScanned uint64)

	flags    oracle.Flags
	vm       *oracle.VM
	provider *compute.Provider

	logger *zap.Logger
}

func (o *option) validate() error {
	if o.source == nil {
		return errors.New("`source` is required")
	}
	if o.numUnits == 0 {
		return fmt.Errorf("%w: `numUnits` must be greater than 0", shared.ErrInvalidArgument)
	}
	if o.noncesPerPass == 0 {
		return fmt.Errorf("%w: `nonces` must be greater than 0", shared.ErrInvalidArgument)
	}
	if err := o.flags.Validate(); err != nil {
		return err
	}
	return nil
}

type OptionFunc func(*option) error

// WithDataSource reads the labels from an initialized data directory. The directory must
// belong to nodeId and commitmentAtxId and be completely initialized under cfg.
func WithDataSource(cfg config.Config, nodeId, commitmentAtxId []byte, datadir string) OptionFunc {
	return func(o *option) error {
		m, err := initialization.LoadMetadata(datadir)
		if err != nil {
			return err
		}

		if err := verifyMetadata(m, cfg, datadir, nodeId, commitmentAtxId); err != nil {
			return err
		}

		if ok, err := initCompleted(datadir, m.NumUnits, cfg.LabelsPerUnit); err != nil {
			return err
		} else if !ok {
			return ErrInitNotCompleted
		}

		o.source = func() (io.ReadCloser, error) {
			return persistence.NewLabelsReader(datadir)
		}
		o.nodeId = nodeId
		o.commitmentAtxId = commitmentAtxId
		o.numUnits = m.NumUnits
		return nil
	}
}

// WithLabelSource reads the labels from source. The caller vouches that the labels
// belong to nodeId and commitmentAtxId.
func WithLabelSource(source LabelSource, nodeId, commitmentAtxId []byte, numUnits uint32) OptionFunc {
	return func(o *option) error {
		o.source = source
		o.nodeId = nodeId
		o.commitmentAtxId = commitmentAtxId
		o.numUnits = numUnits
		return nil
	}
}

// WithNonces restricts the search to the nonces [start, start+count). start must be
// a multiple of shared.NoncesPerGroup and count is rounded up to one.
func WithNonces(start uint32, count uint64) OptionFunc {
	return func(o *option) error {
		if start%shared.NoncesPerGroup != 0 {
			return fmt.Errorf("%w: first nonce %d is not a multiple of %d", shared.ErrInvalidArgument, start, shared.NoncesPerGroup)
		}
		count = roundUpNonces(count)
		if count == 0 || uint64(start)+count > maxNonces {
			return fmt.Errorf("%w: invalid nonce span [%d, +%d)", shared.ErrInvalidArgument, start, count)
		}
		o.nonceStart = start
		o.nonceCount = count
		return nil
	}
}

// WithNoncesPerPass sets how many nonces share one pass over the data. It is rounded
// up to a multiple of shared.NoncesPerGroup.
func WithNoncesPerPass(nonces uint32) OptionFunc {
	return func(o *option) error {
		if nonces == 0 {
			return fmt.Errorf("%w: `nonces` must be greater than 0", shared.ErrInvalidArgument)
		}
		n := roundUpNonces(uint64(nonces))
		if n >= maxNonces {
			return fmt.Errorf("%w: too many nonces per pass: %d", shared.ErrInvalidArgument, nonces)
		}
		o.noncesPerPass = uint32(n)
		return nil
	}
}

// WithThreads sets the number of label workers. 0 uses one per CPU.
func WithThreads(threads uint) OptionFunc {
	return func(o *option) error {
		o.threads = threads
		return nil
	}
}

// WithPowCreator sets the id the proof of work is computed for. Defaults to the node id.
func WithPowCreator(id []byte) OptionFunc {
	return func(o *option) error {
		if len(id) != 32 {
			return fmt.Errorf("%w: invalid `powCreator` length; expected: 32, given: %v", shared.ErrInvalidArgument, len(id))
		}
		o.powCreator = id
		return nil
	}
}

// WithProgress registers a callback receiving the number of labels scanned by each batch.
// It is called from worker goroutines and must not block.
func WithProgress(fn func(labelsScanned uint64)) OptionFunc {
	return func(o *option) error {
		o.progress = fn
		return nil
	}
}

// WithFlags sets the flags of the oracle built for the search. Ignored when WithOracle is used.
func WithFlags(flags oracle.Flags) OptionFunc {
	return func(o *option) error {
		o.flags = flags
		return nil
	}
}

// WithOracle uses vm instead of building an oracle for the search. The caller keeps ownership.
func WithOracle(vm *oracle.VM) OptionFunc {
	return func(o *option) error {
		if vm == nil {
			return fmt.Errorf("%w: nil oracle", shared.ErrInvalidArgument)
		}
		o.vm = vm
		return nil
	}
}

// WithProvider selects the compute provider. GPU providers search with the cipher scheme.
func WithProvider(provider compute.Provider) OptionFunc {
	return func(o *option) error {
		o.provider = &provider
		return nil
	}
}

// WithProvingOpts applies the node-local proving options.
func WithProvingOpts(opts config.ProvingOpts) OptionFunc {
	return func(o *option) error {
		if err := WithNoncesPerPass(opts.Nonces)(o); err != nil {
			return err
		}
		o.threads = opts.Threads
		o.flags = opts.Flags
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(o *option) error {
		o.logger = logger
		return nil
	}
}

func roundUpNonces(n uint64) uint64 {
	return (n + shared.NoncesPerGroup - 1) / shared.NoncesPerGroup * shared.NoncesPerGroup
}
