package proving

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/post-engine/gpu"
	"github.com/spacemeshos/post-engine/shared"
)

// scanCipher searches the labels on an accelerator with the cipher scheme. Batches are
// proven in index order, so the indices of every nonce arrive sorted.
func (p *prover) scanCipher(ctx context.Context, w window) (*nonceResult, error) {
	keys, err := gpu.DeriveKeys(p.challenge, w.start, w.count, w.pows)
	if err != nil {
		return nil, err
	}
	msb, lsb := shared.SplitDifficulty(p.difficulty)
	gctx, err := gpu.NewContext(p.provider.ID, w.start, w.count, keys.Cipher, keys.Lazy, lsb, msb, batchSize, []byte(gpu.KernelSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create gpu context: %w", err)
	}
	defer gctx.Close()

	reader, closer, err := p.openLabels()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(workerCtx)

	batchQueue := make(chan *batch, 2)
	eg.Go(func() error {
		return ioWorker(egCtx, batchQueue, reader, p.reporter(schemeCipher))
	})

	var result *nonceResult
	eg.Go(func() error {
		passed := make(map[uint32][]uint64)
		for batch := range batchQueue {
			status := gctx.Prove(batch.Index, batch.Data)
			batch.release()
			if err := status.Err(); err != nil {
				return fmt.Errorf("gpu prove at index %d: %w", batch.Index, err)
			}

			for i := 0; i < gctx.ResultCount(); i++ {
				r, err := gctx.Result(i)
				if err != nil {
					return err
				}
				passed[r.Nonce] = append(passed[r.Nonce], r.Index)
				if len(passed[r.Nonce]) == int(p.cfg.K2) {
					result = &nonceResult{nonce: r.Nonce, indices: passed[r.Nonce]}
					cancel() // stop the io worker.
					return nil
				}
			}
		}
		return nil
	})

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
	return nil, nil
}
