package oracle

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/spacemeshos/post-engine/shared"
)

// ErrPowNotFound is returned when no pow value below the difficulty exists in the searched range.
var ErrPowNotFound = errors.New("proof of work not found")

// powCheckInterval is the number of pow candidates tried between two context checks.
const powCheckInterval = 1024

// PowHash evaluates the proof of work of a nonce group for the candidate value pow.
func (vm *VM) PowHash(challenge []byte, group uint32, creator []byte, pow uint64) [32]byte {
	input := shared.PowInput(challenge, group, creator)
	input = binary.LittleEndian.AppendUint64(input, pow)
	return vm.Hash(input)
}

// CheckPow reports whether pow solves the proof of work of group under difficulty.
func (vm *VM) CheckPow(challenge []byte, group uint32, creator []byte, pow uint64, difficulty [32]byte) bool {
	hash := vm.PowHash(challenge, group, creator, pow)
	return bytes.Compare(hash[:], difficulty[:]) < 0
}

// FindPow returns the smallest pow value whose hash, read big-endian, is below difficulty.
func (vm *VM) FindPow(ctx context.Context, challenge []byte, group uint32, creator []byte, difficulty [32]byte) (uint64, error) {
	input := shared.PowInput(challenge, group, creator)
	prefix := len(input)
	for pow := uint64(0); ; pow++ {
		if pow%powCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		input = binary.LittleEndian.AppendUint64(input[:prefix], pow)
		hash := vm.Hash(input)
		if bytes.Compare(hash[:], difficulty[:]) < 0 {
			return pow, nil
		}
		if pow == math.MaxUint64 {
			return 0, ErrPowNotFound
		}
	}
}
