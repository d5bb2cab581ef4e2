// Package proving searches initialized labels for a proof of space.
package proving

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/metrics"
	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/persistence"
	"github.com/spacemeshos/post-engine/shared"
)

type ConfigMismatchError = shared.ConfigMismatchError

var (
	ErrInitNotCompleted   = errors.New("initialization not completed")
	ErrEmptyDataset       = errors.New("no labels to prove over")
	ErrNonceSpanExhausted = errors.New("no proof found in nonce span")
)

const (
	schemeOracle = "oracle"
	schemeCipher = "cipher"
)

// window is a range of nonces searched in one pass over the labels.
type window struct {
	start uint32
	count uint32
	// pows holds the proof of work of every group of the window.
	pows []uint64
	// challenges holds the per nonce challenge of the oracle scheme.
	challenges [][32]byte
}

func (w window) pow(nonce uint32) uint64 {
	return w.pows[(nonce-w.start)/shared.NoncesPerGroup]
}

type prover struct {
	challenge     []byte
	cfg           config.Config
	opts          *option
	numLabels     uint64
	difficulty    uint64
	powDifficulty [32]byte
	powCreator    []byte
	vm            *oracle.VM
	provider      compute.Provider
	threads       int
	scanned       atomic.Uint64
	logger        *zap.Logger
}

// Generate searches the labels for a proof of challenge. Nonces are tried in passes of
// WithNoncesPerPass nonces, each pass reading all labels once. The first nonce that
// collects cfg.K2 qualifying indices wins.
func Generate(ctx context.Context, challenge []byte, cfg config.Config, opts ...OptionFunc) (*shared.Proof, *shared.ProofMetadata, error) {
	options := &option{
		nonceCount:    maxNonces,
		noncesPerPass: shared.NoncesPerGroup,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, nil, err
		}
	}
	if err := options.validate(); err != nil {
		return nil, nil, err
	}
	if len(challenge) != 32 {
		return nil, nil, fmt.Errorf("%w: invalid `challenge` length; expected: 32, given: %v", shared.ErrInvalidArgument, len(challenge))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	start := time.Now()
	proof, err := generate(ctx, challenge, cfg, options)
	switch {
	case err == nil:
		metrics.ProvingDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.ProvingDuration.WithLabelValues("canceled").Observe(time.Since(start).Seconds())
		return nil, nil, err
	default:
		metrics.ProvingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, nil, err
	}

	proofMetadata := &shared.ProofMetadata{
		NodeId:          options.nodeId,
		CommitmentAtxId: options.commitmentAtxId,
		Challenge:       challenge,
		NumUnits:        options.numUnits,
		LabelsPerUnit:   cfg.LabelsPerUnit,
	}
	return proof, proofMetadata, nil
}

func generate(ctx context.Context, challenge []byte, cfg config.Config, opts *option) (*shared.Proof, error) {
	numLabels := uint64(opts.numUnits) * cfg.LabelsPerUnit
	difficulty, err := shared.ProvingDifficulty(numLabels, cfg.K1)
	if err != nil {
		return nil, err
	}

	threads := int(opts.threads)
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	p := &prover{
		challenge:     challenge,
		cfg:           cfg,
		opts:          opts,
		numLabels:     numLabels,
		difficulty:    difficulty,
		powDifficulty: shared.ScalePowDifficulty(cfg.PowDifficulty, opts.numUnits),
		powCreator:    opts.powCreator,
		vm:            opts.vm,
		threads:       threads,
		logger:        opts.logger,
	}
	if p.powCreator == nil {
		p.powCreator = opts.nodeId
	}
	p.provider = compute.Provider{ID: compute.CPUProviderID, Model: "CPU", DeviceType: compute.ClassCPU}
	if opts.provider != nil {
		p.provider = *opts.provider
	}

	if p.vm == nil {
		o, err := oracle.New(ctx, opts.flags, cfg.Oracle,
			oracle.WithWorkers(threads),
			oracle.WithLogger(opts.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create oracle: %w", err)
		}
		defer o.Close()
		p.vm = o.VM
	}

	p.logger.Info("proving: starting proof generation",
		zap.Stringer("challenge", shared.HexEncoded(challenge)),
		zap.Uint64("numLabels", numLabels),
		zap.Uint32("firstNonce", opts.nonceStart),
		zap.Uint64("nonces", opts.nonceCount),
		zap.Uint32("noncesPerPass", opts.noncesPerPass),
		zap.Int("threads", threads),
		zap.String("provider", p.provider.Model),
	)

	end := uint64(opts.nonceStart) + opts.nonceCount
	for next := uint64(opts.nonceStart); next < end; next += uint64(opts.noncesPerPass) {
		w := window{
			start: uint32(next),
			count: uint32(min(uint64(opts.noncesPerPass), end-next)),
		}
		result, err := p.pass(ctx, w)
		if err != nil {
			return nil, err
		}
		if result == nil {
			p.logger.Debug("proving: no proof in nonce window",
				zap.Uint32("firstNonce", w.start),
				zap.Uint32("nonces", w.count),
			)
			continue
		}

		indices, err := shared.CompressIndices(result.indices, shared.RequiredBits(numLabels))
		if err != nil {
			return nil, err
		}
		p.logger.Info("proving: generated proof",
			zap.Uint32("nonce", result.nonce),
			zap.Uint64("pow", result.pow),
			zap.Uint64("labelsScanned", p.scanned.Load()),
		)
		return &shared.Proof{
			Nonce:      result.nonce,
			Indices:    indices,
			Pow:        result.pow,
			PowCreator: p.powCreator,
		}, nil
	}
	return nil, ErrNonceSpanExhausted
}

// pass computes the proofs of work of w and scans all labels once for its nonces.
func (p *prover) pass(ctx context.Context, w window) (*passResult, error) {
	pows, err := p.findPows(ctx, w)
	if err != nil {
		return nil, err
	}
	w.pows = pows

	before := p.scanned.Load()
	var result *nonceResult
	if p.provider.DeviceType == compute.ClassGPU {
		result, err = p.scanCipher(ctx, w)
	} else {
		w.challenges = make([][32]byte, w.count)
		for i := range w.challenges {
			nonce := w.start + uint32(i)
			w.challenges[i] = shared.NonceChallenge(p.challenge, nonce, w.pow(nonce))
		}
		result, err = p.scanOracle(ctx, w)
	}
	if err != nil {
		return nil, err
	}
	if result == nil && p.scanned.Load() == before {
		return nil, ErrEmptyDataset
	}
	if result == nil {
		return nil, nil
	}
	return &passResult{nonceResult: *result, pow: w.pow(result.nonce)}, nil
}

type passResult struct {
	nonceResult
	pow uint64
}

// findPows searches the proof of work of every nonce group of w in parallel.
func (p *prover) findPows(ctx context.Context, w window) ([]uint64, error) {
	firstGroup := shared.NonceGroup(w.start)
	pows := make([]uint64, w.count/shared.NoncesPerGroup)

	var eg errgroup.Group
	eg.SetLimit(p.threads)
	for i := range pows {
		group := firstGroup + uint32(i)
		eg.Go(func() error {
			start := time.Now()
			pow, err := p.vm.FindPow(ctx, p.challenge, group, p.powCreator, p.powDifficulty)
			if err != nil {
				return fmt.Errorf("pow of nonce group %d: %w", group, err)
			}
			metrics.PowDuration.Observe(time.Since(start).Seconds())
			p.logger.Debug("proving: found proof of work",
				zap.Uint32("group", group),
				zap.Uint64("pow", pow),
				zap.Duration("took", time.Since(start)),
			)
			pows[i] = pow
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return pows, nil
}

// openLabels opens the label source limited to the index space of the proof.
func (p *prover) openLabels() (io.Reader, io.Closer, error) {
	reader, err := p.opts.source()
	if err != nil {
		return nil, nil, err
	}
	limit := int64(math.MaxInt64)
	if p.numLabels < math.MaxInt64/shared.LabelLength {
		limit = int64(p.numLabels * shared.LabelLength)
	}
	return io.LimitReader(reader, limit), reader, nil
}

func (p *prover) reporter(scheme string) func(uint64) {
	counter := metrics.LabelsScanned.WithLabelValues(scheme)
	return func(n uint64) {
		p.scanned.Add(n)
		counter.Add(float64(n))
		if p.opts.progress != nil {
			p.opts.progress(n)
		}
	}
}

// scanOracle scores the labels with the oracle on the CPU.
func (p *prover) scanOracle(ctx context.Context, w window) (*nonceResult, error) {
	reader, closer, err := p.openLabels()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(workerCtx)

	batchQueue := make(chan *batch, 2*p.threads)
	resultChan := make(chan *batchResult, 2*p.threads)

	eg.Go(func() error {
		return ioWorker(egCtx, batchQueue, reader, p.reporter(schemeOracle))
	})

	var wg sync.WaitGroup
	wg.Add(p.threads)
	for i := 0; i < p.threads; i++ {
		eg.Go(func() error {
			defer wg.Done()
			return labelWorker(egCtx, p.vm, batchQueue, resultChan, w, p.difficulty)
		})
	}
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	result, solutionErr := solutionWorker(egCtx, resultChan, p.cfg.K2, p.logger)
	cancel() // stop the other workers.
	waitErr := eg.Wait()

	if result != nil {
		return result, nil
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, solutionErr
}

// verifyMetadata checks that the metadata of datadir belongs to the given identity and config.
func verifyMetadata(m *shared.PostMetadata, cfg config.Config, datadir string, nodeId, commitmentAtxId []byte) error {
	if !bytes.Equal(nodeId, m.NodeId) {
		return ConfigMismatchError{
			Param:    "NodeId",
			Expected: fmt.Sprintf("%x", nodeId),
			Found:    fmt.Sprintf("%x", m.NodeId),
			DataDir:  datadir,
		}
	}

	if !bytes.Equal(commitmentAtxId, m.CommitmentAtxId) {
		return ConfigMismatchError{
			Param:    "CommitmentAtxId",
			Expected: fmt.Sprintf("%x", commitmentAtxId),
			Found:    fmt.Sprintf("%x", m.CommitmentAtxId),
			DataDir:  datadir,
		}
	}

	if cfg.LabelsPerUnit != m.LabelsPerUnit {
		return ConfigMismatchError{
			Param:    "LabelsPerUnit",
			Expected: fmt.Sprintf("%d", cfg.LabelsPerUnit),
			Found:    fmt.Sprintf("%d", m.LabelsPerUnit),
			DataDir:  datadir,
		}
	}

	return nil
}

func initCompleted(datadir string, numUnits uint32, labelsPerUnit uint64) (bool, error) {
	numBytesWritten, err := persistence.NumBytesWritten(datadir)
	if err != nil {
		return false, err
	}

	target := uint64(numUnits) * labelsPerUnit
	return numBytesWritten/shared.LabelLength == target, nil
}
