// Package verifying checks proofs of space and the persisted labels they are generated from.
package verifying

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/gpu"
	"github.com/spacemeshos/post-engine/labels"
	"github.com/spacemeshos/post-engine/metrics"
	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/shared"
)

type verifierOption struct {
	params  oracle.Params
	workers int
	logger  *zap.Logger
}

type VerifierOptionFunc func(*verifierOption) error

// WithOracleParams sets the size of the oracle tables. Defaults to oracle.DefaultParams.
func WithOracleParams(params oracle.Params) VerifierOptionFunc {
	return func(o *verifierOption) error {
		if err := params.Validate(); err != nil {
			return err
		}
		o.params = params
		return nil
	}
}

// WithWorkers sets the number of goroutines building the oracle dataset.
func WithWorkers(workers int) VerifierOptionFunc {
	return func(o *verifierOption) error {
		o.workers = workers
		return nil
	}
}

func WithLogger(logger *zap.Logger) VerifierOptionFunc {
	return func(o *verifierOption) error {
		o.logger = logger
		return nil
	}
}

type option struct {
	cipherScheme bool
	labelScrypt  *shared.ScryptParams
}

type OptionFunc func(*option) error

// WithCipherScheme checks the indices with the cipher scheme of accelerator providers
// instead of the oracle scores.
func WithCipherScheme() OptionFunc {
	return func(o *option) error {
		o.cipherScheme = true
		return nil
	}
}

// WithLabelScryptParams re-derives labels with the legacy scrypt scheme.
func WithLabelScryptParams(params shared.ScryptParams) OptionFunc {
	return func(o *option) error {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
		}
		o.labelScrypt = &params
		return nil
	}
}

// Verifier checks proofs against an oracle it owns. It is safe for concurrent use
// and must be closed after use with Close.
type Verifier struct {
	oracle *oracle.Oracle
	params oracle.Params
	logger *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewVerifier creates a verifier with an oracle built for flags.
func NewVerifier(flags oracle.Flags, opts ...VerifierOptionFunc) (*Verifier, error) {
	options := &verifierOption{
		params: oracle.DefaultParams(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	o, err := oracle.New(context.Background(), flags, options.params,
		oracle.WithWorkers(options.workers),
		oracle.WithLogger(options.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToCreateVerifier, err)
	}

	return &Verifier{
		oracle: o,
		params: options.params,
		logger: options.logger,
	}, nil
}

// Close releases the oracle. It must not be called while verifications are running.
func (v *Verifier) Close() error {
	var err error
	v.closeOnce.Do(func() {
		v.closed.Store(true)
		err = v.oracle.Close()
	})
	return err
}

// Verify checks that p is a valid proof for m under cfg. The returned error describes every result other than Ok.
func (v *Verifier) Verify(ctx context.Context, p *shared.Proof, m *shared.ProofMetadata, cfg config.Config, opts ...OptionFunc) (Result, error) {
	start := time.Now()
	result, err := v.verify(ctx, p, m, cfg, opts...)
	metrics.VerifyResults.WithLabelValues(result.String()).Inc()
	metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		v.logger.Debug("verifying: proof rejected", zap.Stringer("result", result), zap.Error(err))
	}
	return result, err
}

func (v *Verifier) verify(ctx context.Context, p *shared.Proof, m *shared.ProofMetadata, cfg config.Config, opts ...OptionFunc) (Result, error) {
	options := &option{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return fail(InvalidArgument, "%w", err)
		}
	}
	if v.closed.Load() {
		return fail(Failed, "%w", ErrVerifierClosed)
	}

	if res, err := validate(p, m, cfg); err != nil {
		return res, err
	}
	if cfg.Oracle != v.params {
		return fail(InvalidArgument, "%w", ErrOracleParamsMismatch)
	}

	numLabels := m.NumLabels()
	difficulty, err := shared.ProvingDifficulty(numLabels, cfg.K1)
	if err != nil {
		return fail(InvalidArgument, "%w", err)
	}

	indices, err := shared.DecompressIndices(p.Indices, shared.RequiredBits(numLabels), uint(cfg.K2))
	if err != nil {
		return fail(Invalid, "malformed indices: %w", err)
	}
	for i, index := range indices {
		if index >= numLabels {
			return fail(Invalid, "index %d out of range [0, %d)", index, numLabels)
		}
		if i > 0 && index <= indices[i-1] {
			return fail(Invalid, "indices are not strictly ascending at position %d", i)
		}
	}

	powDifficulty := shared.ScalePowDifficulty(cfg.PowDifficulty, m.NumUnits)
	if !v.oracle.CheckPow(m.Challenge, shared.NonceGroup(p.Nonce), p.PowCreator, p.Pow, powDifficulty) {
		return fail(Invalid, "proof of work %d of nonce %d is above the difficulty", p.Pow, p.Nonce)
	}

	labelAt, err := newLabelFunc(shared.CommitmentBytes(m.NodeId, m.CommitmentAtxId), numLabels, options.labelScrypt)
	if err != nil {
		return fail(Failed, "%w", err)
	}

	nonceChallenge := shared.NonceChallenge(m.Challenge, p.Nonce, p.Pow)
	for _, pos := range SamplePositions(m.Challenge, p.Nonce, cfg.K2, cfg.K3) {
		if err := ctx.Err(); err != nil {
			return fail(Failed, "%w", err)
		}

		index := indices[pos]
		label, err := labelAt(index)
		if err != nil {
			return fail(Failed, "deriving label %d: %w", index, err)
		}

		var ok bool
		if options.cipherScheme {
			ok, err = gpu.Qualifies(m.Challenge, p.Nonce, p.Pow, label, difficulty)
			if err != nil {
				return fail(Failed, "checking label %d: %w", index, err)
			}
		} else {
			ok = v.oracle.ScoreBelow(nonceChallenge[:], label, index, difficulty)
		}
		if !ok {
			return fail(Invalid, "label at index %d does not qualify for nonce %d", index, p.Nonce)
		}
	}

	return Ok, nil
}

// Verify checks a single proof with a verifier created and closed for the occasion. Failure to build
// the oracle is reported as FailedToCreateVerifier.
func Verify(ctx context.Context, p *shared.Proof, m *shared.ProofMetadata, cfg config.Config, flags oracle.Flags, opts ...OptionFunc) (Result, error) {
	v, err := NewVerifier(flags, WithOracleParams(cfg.Oracle))
	if err != nil {
		return fail(FailedToCreateVerifier, "%w", err)
	}
	defer v.Close()
	return v.Verify(ctx, p, m, cfg, opts...)
}

func validate(p *shared.Proof, m *shared.ProofMetadata, cfg config.Config) (Result, error) {
	if p == nil {
		return fail(InvalidArgument, "proof is nil")
	}
	if m == nil {
		return fail(InvalidArgument, "metadata is nil")
	}
	if len(p.PowCreator) != 32 {
		return fail(InvalidArgument, "invalid `powCreator` length; expected: 32, given: %v", len(p.PowCreator))
	}
	if len(m.NodeId) != 32 {
		return fail(InvalidArgument, "invalid `nodeId` length; expected: 32, given: %v", len(m.NodeId))
	}
	if len(m.CommitmentAtxId) != 32 {
		return fail(InvalidArgument, "invalid `commitmentAtxId` length; expected: 32, given: %v", len(m.CommitmentAtxId))
	}
	if len(m.Challenge) != 32 {
		return fail(InvalidArgument, "invalid `challenge` length; expected: 32, given: %v", len(m.Challenge))
	}
	if m.NumUnits == 0 || m.LabelsPerUnit == 0 {
		return fail(InvalidArgument, "empty index space: %d units of %d labels", m.NumUnits, m.LabelsPerUnit)
	}
	if hi, _ := bits.Mul64(uint64(m.NumUnits), m.LabelsPerUnit); hi != 0 {
		return fail(InvalidArgument, "index space of %d units of %d labels overflows", m.NumUnits, m.LabelsPerUnit)
	}
	if m.NumUnits < cfg.MinNumUnits || m.NumUnits > cfg.MaxNumUnits {
		return fail(InvalidArgument, "number of units %d outside of [%d, %d]", m.NumUnits, cfg.MinNumUnits, cfg.MaxNumUnits)
	}
	if m.LabelsPerUnit != cfg.LabelsPerUnit {
		return fail(InvalidArgument, "labels per unit of proof (%d) and config (%d) differ", m.LabelsPerUnit, cfg.LabelsPerUnit)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fail(InvalidArgument, "%w", err)
	}
	return Ok, nil
}

// newLabelFunc returns a function re-deriving single labels of a commitment.
func newLabelFunc(commitment []byte, numLabels uint64, scrypt *shared.ScryptParams) (func(uint64) ([]byte, error), error) {
	// Nonces are irrelevant for single labels, any difficulty does.
	difficulty := shared.NonceDifficulty(numLabels)
	if scrypt != nil {
		l, err := labels.NewScryptLabeler(commitment, difficulty[:], *scrypt, labels.WithCapacity(numLabels))
		if err != nil {
			return nil, err
		}
		return l.Label, nil
	}

	k, err := labels.NewKeystream(commitment, difficulty[:], labels.WithCapacity(numLabels))
	if err != nil {
		return nil, err
	}
	return func(index uint64) ([]byte, error) {
		return k.Label(index), nil
	}, nil
}
