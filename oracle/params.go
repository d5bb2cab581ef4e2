package oracle

import (
	"errors"
	"fmt"
)

// ItemSize is the size of a cache or dataset item in bytes.
const ItemSize = 64

// Params size the oracle tables. Provers and verifiers must use the same values.
type Params struct {
	// CacheItems is the number of items of the cache.
	CacheItems uint32 `mapstructure:"cache-items"`
	// DatasetItems is the number of items of the dataset.
	DatasetItems uint64 `mapstructure:"dataset-items"`
	// MemoryKiB is the memory cost of the argon2 seed of the cache.
	MemoryKiB uint32 `mapstructure:"memory-kib"`
	// Rounds is the number of table lookups per hash.
	Rounds uint32 `mapstructure:"rounds"`
}

func DefaultParams() Params {
	return Params{
		CacheItems:   1 << 18, // 16 MiB
		DatasetItems: 1 << 22, // 256 MiB
		MemoryKiB:    64 * 1024,
		Rounds:       8,
	}
}

// TestParams returns small tables. These are intended for testing.
func TestParams() Params {
	return Params{
		CacheItems:   1 << 10,
		DatasetItems: 1 << 12,
		MemoryKiB:    256,
		Rounds:       4,
	}
}

func (p Params) Validate() error {
	var errs []error
	if p.CacheItems == 0 {
		errs = append(errs, errors.New("`CacheItems` must be > 0"))
	}
	if p.DatasetItems == 0 {
		errs = append(errs, errors.New("`DatasetItems` must be > 0"))
	}
	if p.MemoryKiB < 8*argon2Lanes {
		errs = append(errs, fmt.Errorf("`MemoryKiB` must be >= %d", 8*argon2Lanes))
	}
	if p.Rounds == 0 {
		errs = append(errs, errors.New("`Rounds` must be > 0"))
	}
	return errors.Join(errs...)
}
