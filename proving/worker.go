package proving

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/oracle"
	"github.com/spacemeshos/post-engine/shared"
)

// batchSize is the number of bytes read from the labels in one go.
const batchSize = 4096 * shared.LabelLength

var batchDataPool = sync.Pool{
	New: func() any {
		buf := make([]byte, batchSize)
		return &buf
	},
}

type batch struct {
	Data  []byte
	Index uint64

	buf *[]byte
}

func (b *batch) release() {
	batchDataPool.Put(b.buf)
}

type nonceResult struct {
	nonce   uint32
	indices []uint64
}

// ioWorker is a worker that reads labels and writes them to a batch channel to be processed by the
// labelWorkers. Batches are sent in ascending index order. A trailing partial label is dropped.
func ioWorker(ctx context.Context, batchQueue chan<- *batch, reader io.Reader, report func(labels uint64)) error {
	defer close(batchQueue)
	index := uint64(0)

	for {
		buf := batchDataPool.Get().(*[]byte)
		n, err := io.ReadFull(reader, *buf)
		n -= n % shared.LabelLength // make sure we don't send partial labels to the label workers.

		switch {
		case err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			if n == 0 {
				batchDataPool.Put(buf)
				return nil
			}
			b := &batch{
				Data:  (*buf)[:n],
				Index: index,
				buf:   buf,
			}
			select {
			case batchQueue <- b:
			case <-ctx.Done():
				b.release()
				return ctx.Err()
			}
			numLabels := uint64(n / shared.LabelLength)
			report(numLabels)
			index += numLabels
			if err != nil {
				return nil
			}
		default:
			batchDataPool.Put(buf)
			return err
		}
	}
}

// batchResult holds the qualifying indices of one batch, ascending per nonce.
type batchResult struct {
	Index     uint64
	Count     uint64
	Solutions map[uint32][]uint64
}

// labelWorker is a worker that receives batches from ioWorker and scores every label for every nonce of
// the window. The qualifying indices of each batch are sent to the solutionWorker.
func labelWorker(ctx context.Context, vm *oracle.VM, batchChan <-chan *batch, resultChan chan<- *batchResult, w window, difficulty uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batchChan:
			if !ok {
				return nil
			}
			result, err := scoreBatch(ctx, vm, batch, w, difficulty)
			batch.release()
			if err != nil {
				return err
			}
			select {
			case resultChan <- result: // send batch result to proof generator
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func scoreBatch(ctx context.Context, vm *oracle.VM, b *batch, w window, difficulty uint64) (*batchResult, error) {
	result := &batchResult{
		Index: b.Index,
		Count: uint64(len(b.Data) / shared.LabelLength),
	}
	index := b.Index
	for labels := b.Data; len(labels) > 0; labels = labels[shared.LabelLength:] {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		label := labels[:shared.LabelLength]
		for i, ch := range w.challenges {
			if !vm.ScoreBelow(ch[:], label, index, difficulty) {
				continue
			}
			if result.Solutions == nil {
				result.Solutions = make(map[uint32][]uint64)
			}
			nonce := w.start + uint32(i)
			result.Solutions[nonce] = append(result.Solutions[nonce], index)
		}
		index++
	}
	return result, nil
}

// solutionWorker merges batch results in index order, whatever order they arrive in, so every
// nonce collects its first K2 qualifying indices. The nonce whose K2-th index is the lowest wins,
// ties going to the lower nonce. It returns nil when resultChan is closed before any nonce got there.
func solutionWorker(ctx context.Context, resultChan <-chan *batchResult, k2 uint32, logger *zap.Logger) (*nonceResult, error) {
	pending := make(map[uint64]*batchResult)
	passed := make(map[uint32][]uint64)
	next := uint64(0)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result, ok := <-resultChan:
			if !ok {
				return nil, nil
			}
			pending[result.Index] = result

			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next += r.Count

				if winner := mergeBatch(passed, r, int(k2)); winner != nil {
					logger.Debug("found enough label indices for proof", zap.Uint32("nonce", winner.nonce))
					return winner, nil
				}
			}
		}
	}
}

// mergeBatch appends the indices of r to passed, keeping at most k2 per nonce, and returns
// the nonce that became viable at the lowest index, if any.
func mergeBatch(passed map[uint32][]uint64, r *batchResult, k2 int) *nonceResult {
	var winner *nonceResult
	for nonce, indices := range r.Solutions {
		have := passed[nonce]
		if len(have) >= k2 {
			continue
		}
		have = append(have, indices[:min(len(indices), k2-len(have))]...)
		passed[nonce] = have
		if len(have) < k2 {
			continue
		}
		last := have[k2-1]
		if winner == nil || last < winner.indices[k2-1] || (last == winner.indices[k2-1] && nonce < winner.nonce) {
			winner = &nonceResult{nonce: nonce, indices: have}
		}
	}
	return winner
}
