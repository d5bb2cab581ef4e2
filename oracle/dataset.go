package oracle

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/pbnjay/memory"
	"golang.org/x/sync/errgroup"
)

var ErrInsufficientMemory = errors.New("insufficient memory for dataset")

// Dataset is the expanded table of the oracle. Every item is derived from the
// cache, so a VM running on the dataset returns the same hashes as one running
// on the cache alone.
type Dataset struct {
	flags  Flags
	params Params
	count  uint64
	items  []byte

	closeOnce sync.Once
}

// NewDataset allocates an empty dataset for params. Items must be filled with Init
// before the dataset is handed to a VM.
func NewDataset(flags Flags, params Params) (*Dataset, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle params: %w", err)
	}

	size := params.DatasetItems * ItemSize
	if total := memory.TotalMemory(); total != 0 && size > total {
		return nil, fmt.Errorf("%w: need %d bytes, system has %d", ErrInsufficientMemory, size, total)
	}

	return &Dataset{
		flags:  flags,
		params: params,
		count:  params.DatasetItems,
		items: make([]byte, size),
	}, nil
}

// Init fills count items starting at item start. Disjoint ranges may be
// initialized concurrently.
func (d *Dataset) Init(cache *Cache, start, count uint64) error {
	if cache.items == nil || d.items == nil {
		return ErrClosed
	}
	if cache.params.DatasetItems != d.count {
		return fmt.Errorf("cache is for %d dataset items, dataset has %d", cache.params.DatasetItems, d.count)
	}
	if start+count > d.count || start+count < start {
		return fmt.Errorf("dataset range [%d, %d) exceeds %d items", start, start+count, d.count)
	}

	for i := start; i < start+count; i++ {
		cache.datasetItem(i, d.items[i*ItemSize:][:ItemSize])
	}
	return nil
}

// Count returns the number of items in the dataset.
func (d *Dataset) Count() uint64 {
	return d.count
}

// Close releases the dataset memory. It must not be called while readers are active.
func (d *Dataset) Close() error {
	d.closeOnce.Do(func() { d.items = nil })
	return nil
}

// BuildDataset allocates a dataset and initializes it from cache in equal slices,
// one per worker. The last slice takes the remainder. workers <= 0 means one per CPU.
func BuildDataset(ctx context.Context, flags Flags, cache *Cache, workers int) (*Dataset, error) {
	d, err := NewDataset(flags, cache.params)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if uint64(workers) > d.count {
		workers = int(d.count)
	}

	perWorker := d.count / uint64(workers)
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		start := uint64(i) * perWorker
		count := perWorker
		if i == workers-1 {
			count = d.count - start
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return d.Init(cache, start, count)
		})
	}
	if err := eg.Wait(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
