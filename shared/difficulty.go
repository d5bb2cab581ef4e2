package shared

import (
	"fmt"
	"math/big"
)

var twoTo64 = new(big.Int).Lsh(big.NewInt(1), 64)

// ProvingDifficulty returns the threshold a label score must stay below to qualify:
// 2^64 * k1 / numLabels, so that k1 labels qualify on average.
func ProvingDifficulty(numLabels uint64, k1 uint32) (uint64, error) {
	if numLabels <= uint64(k1) {
		return 0, fmt.Errorf("%w: number of labels (%d) must be bigger than k1 (%d)", ErrInvalidArgument, numLabels, k1)
	}
	d := new(big.Int).Mul(twoTo64, new(big.Int).SetUint64(uint64(k1)))
	d.Div(d, new(big.Int).SetUint64(numLabels))
	return d.Uint64(), nil
}

// SplitDifficulty splits a 64 bit threshold into its most significant byte and the remaining 56 bits.
func SplitDifficulty(d uint64) (msb uint8, lsb uint64) {
	return uint8(d >> 56), d & 0x00ff_ffff_ffff_ffff
}

// ScalePowDifficulty divides a big-endian 256 bit difficulty by the number of units,
// making the proof of work proportionally harder for bigger identities.
func ScalePowDifficulty(difficulty [32]byte, numUnits uint32) [32]byte {
	if numUnits <= 1 {
		return difficulty
	}
	d := new(big.Int).SetBytes(difficulty[:])
	d.Div(d, big.NewInt(int64(numUnits)))

	var out [32]byte
	d.FillBytes(out[:])
	return out
}

// NonceDifficulty returns the bound a label keystream value must stay below to be
// selected as nonce: (2^256-1) / numLabels, one expected hit per numLabels labels.
func NonceDifficulty(numLabels uint64) [32]byte {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if numLabels > 1 {
		max.Div(max, new(big.Int).SetUint64(numLabels))
	}

	var out [32]byte
	max.FillBytes(out[:])
	return out
}
