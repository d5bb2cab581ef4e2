// Package oracle implements the difficulty oracle: a memory-hard hash backed by
// a compact cache or an expanded dataset, used to score labels and to compute
// the anti-grinding proof of work.
package oracle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type option struct {
	key     []byte
	workers int
	logger  *zap.Logger
}

// OptionFunc is a function that sets an option for an Oracle instance.
type OptionFunc func(*option) error

// WithKey sets the key the cache is seeded with. Defaults to DefaultCacheKey.
func WithKey(key []byte) OptionFunc {
	return func(opts *option) error {
		if len(key) == 0 {
			return errors.New("`key` cannot be empty")
		}
		opts.key = key
		return nil
	}
}

// WithWorkers sets the number of goroutines building the dataset.
func WithWorkers(workers int) OptionFunc {
	return func(opts *option) error {
		opts.workers = workers
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opts *option) error {
		opts.logger = logger
		return nil
	}
}

// Oracle owns a cache, an optional dataset and the VM reading them.
type Oracle struct {
	*VM

	cache   *Cache
	dataset *Dataset
}

// New builds the tables selected by flags and returns a ready VM. The dataset
// is only built when flags has FlagFullMem. The Oracle must be closed after use.
func New(ctx context.Context, flags Flags, params Params, opts ...OptionFunc) (*Oracle, error) {
	options := &option{
		key:    DefaultCacheKey,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	cache, err := NewCache(flags, options.key, params)
	if err != nil {
		return nil, err
	}
	options.logger.Debug("oracle cache ready",
		zap.Stringer("flags", flags),
		zap.Uint32("items", params.CacheItems),
		zap.Duration("took", time.Since(start)),
	)

	var dataset *Dataset
	if flags.Has(FlagFullMem) {
		start = time.Now()
		dataset, err = BuildDataset(ctx, flags, cache, options.workers)
		if err != nil {
			cache.Close()
			return nil, err
		}
		options.logger.Debug("oracle dataset ready",
			zap.Uint64("items", params.DatasetItems),
			zap.Duration("took", time.Since(start)),
		)
	}

	vm, err := NewVM(flags, cache, dataset)
	if err != nil {
		if dataset != nil {
			dataset.Close()
		}
		cache.Close()
		return nil, err
	}

	return &Oracle{
		VM:      vm,
		cache:   cache,
		dataset: dataset,
	}, nil
}

func (o *Oracle) Close() error {
	if o.dataset != nil {
		o.dataset.Close()
	}
	return o.cache.Close()
}
