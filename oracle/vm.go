package oracle

import (
	"encoding/binary"
	"errors"

	"github.com/zeebo/blake3"
)

var (
	ErrDatasetRequired = errors.New("full memory mode requires an initialized dataset")
	ErrCacheRequired   = errors.New("light mode requires a cache")
)

// VM evaluates the memory-hard hash. With FlagFullMem it reads dataset items,
// otherwise it recomputes them from the cache. Both modes return the same hashes.
// A VM holds no mutable state and may be shared between goroutines.
type VM struct {
	flags   Flags
	cache   *Cache
	dataset *Dataset
	rounds  uint32
	count   uint64
}

// NewVM creates a VM. The cache and dataset must outlive it.
func NewVM(flags Flags, cache *Cache, dataset *Dataset) (*VM, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	vm := &VM{flags: flags}
	switch {
	case flags.Has(FlagFullMem):
		if dataset == nil {
			return nil, ErrDatasetRequired
		}
		if dataset.items == nil {
			return nil, ErrClosed
		}
		vm.dataset = dataset
		vm.count = dataset.count
		vm.rounds = dataset.params.Rounds
	default:
		if cache == nil {
			return nil, ErrCacheRequired
		}
		if cache.items == nil {
			return nil, ErrClosed
		}
		vm.cache = cache
		vm.count = cache.params.DatasetItems
		vm.rounds = cache.params.Rounds
	}
	return vm, nil
}

func (vm *VM) Flags() Flags {
	return vm.flags
}

// Hash evaluates the memory-hard function over input.
func (vm *VM) Hash(input []byte) [32]byte {
	state := blake3.Sum512(input)

	var msg [2 * ItemSize]byte
	for r := uint32(0); r < vm.rounds; r++ {
		idx := binary.LittleEndian.Uint64(state[:8]) % vm.count
		copy(msg[:], state[:])
		if vm.dataset != nil {
			copy(msg[ItemSize:], vm.dataset.items[idx*ItemSize:][:ItemSize])
		} else {
			vm.cache.datasetItem(idx, msg[ItemSize:])
		}
		state = blake3.Sum512(msg[:])
	}

	var out [32]byte
	copy(out[:], state[:32])
	return out
}

// Score hashes a label at index under challenge.
func (vm *VM) Score(challenge, label []byte, index uint64) [32]byte {
	input := make([]byte, 0, len(challenge)+len(label)+8)
	input = append(input, challenge...)
	input = append(input, label...)
	input = binary.LittleEndian.AppendUint64(input, index)
	return vm.Hash(input)
}

// ScoreBelow reports whether the score of label at index qualifies under difficulty:
// the first 8 bytes of the score, read little-endian, must be below it.
func (vm *VM) ScoreBelow(challenge, label []byte, index, difficulty uint64) bool {
	score := vm.Score(challenge, label, index)
	return binary.LittleEndian.Uint64(score[:8]) < difficulty
}
