package oracle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

const (
	argon2Lanes = 4
	cacheSalt   = "post-oracle-cache"

	// cacheAccesses is the number of cache items mixed into one dataset item.
	cacheAccesses = 4
)

// DefaultCacheKey is the key provers and verifiers seed the cache with.
var DefaultCacheKey = []byte("post-oracle-cache-key")

var ErrClosed = errors.New("oracle table has been closed")

// Cache is the compact, seed-derived table of the oracle. It is immutable once
// created and safe for concurrent readers.
type Cache struct {
	flags  Flags
	params Params
	items  []byte

	closeOnce sync.Once
}

// NewCache derives a cache from key. The seed is computed with argon2id, then
// expanded with blake3 and mixed sequentially so every item depends on the previous ones.
func NewCache(flags Flags, key []byte, params Params) (*Cache, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle params: %w", err)
	}

	seed := argon2.IDKey(key, []byte(cacheSalt), 1, params.MemoryKiB, argon2Lanes, 32)

	h := blake3.New()
	h.Write(seed)
	items := make([]byte, uint64(params.CacheItems)*ItemSize)
	if _, err := h.Digest().Read(items); err != nil {
		return nil, fmt.Errorf("expand cache seed: %w", err)
	}

	n := uint64(params.CacheItems)
	var msg [3 * ItemSize]byte
	for i := uint64(0); i < n; i++ {
		prev := items[((i+n-1)%n)*ItemSize:][:ItemSize]
		ref := binary.LittleEndian.Uint64(prev[:8]) % n

		copy(msg[:], items[i*ItemSize:][:ItemSize])
		copy(msg[ItemSize:], prev)
		copy(msg[2*ItemSize:], items[ref*ItemSize:][:ItemSize])
		sum := blake3.Sum512(msg[:])
		copy(items[i*ItemSize:], sum[:])
	}

	return &Cache{
		flags:  flags,
		params: params,
		items:  items,
	}, nil
}

// Params returns the parameters the cache was built with.
func (c *Cache) Params() Params {
	return c.params
}

// Close releases the cache memory. It must not be called while readers are active.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { c.items = nil })
	return nil
}

// datasetItem computes dataset item index from the cache into out.
func (c *Cache) datasetItem(index uint64, out []byte) {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], index)
	state := blake3.Sum512(seed[:])

	n := uint64(c.params.CacheItems)
	var msg [2 * ItemSize]byte
	for r := 0; r < cacheAccesses; r++ {
		ref := binary.LittleEndian.Uint64(state[:8]) % n
		copy(msg[:], state[:])
		copy(msg[ItemSize:], c.items[ref*ItemSize:][:ItemSize])
		state = blake3.Sum512(msg[:])
	}
	copy(out, state[:])
}
