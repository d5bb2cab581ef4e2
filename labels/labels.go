// Package labels derives the labels a node stores. Labels are a deterministic
// function of the node's commitment and the label index.
package labels

import (
	"bytes"
	"fmt"
	"math"

	"github.com/spacemeshos/post-engine/shared"
)

// RawLength is the number of keystream bytes computed per label. The first
// shared.LabelLength bytes are the label, all of them are compared against the
// nonce difficulty.
const RawLength = 32

// Labeler derives a range of labels and looks for a nonce while doing so.
type Labeler interface {
	// Derive writes the labels of the inclusive range [start, end] into out and
	// returns the first index in the range whose raw value is below the difficulty.
	// A nil nonce with a nil error means the range holds no nonce.
	Derive(start, end uint64, out []byte) (*uint64, error)
}

type option struct {
	capacity uint64
}

type OptionFunc func(*option) error

// WithCapacity sets the total number of labels. Indices at or beyond it are rejected.
func WithCapacity(numLabels uint64) OptionFunc {
	return func(opts *option) error {
		if numLabels == 0 {
			return fmt.Errorf("%w: capacity must be > 0", shared.ErrInvalidArgument)
		}
		opts.capacity = numLabels
		return nil
	}
}

func applyOptions(opts []OptionFunc) (*option, error) {
	options := &option{capacity: math.MaxUint64}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func validateKeys(commitment, difficulty []byte) error {
	if len(commitment) != 32 {
		return fmt.Errorf("%w: invalid `commitment` length; expected: 32, given: %v", shared.ErrInvalidArgument, len(commitment))
	}
	if len(difficulty) != 32 {
		return fmt.Errorf("%w: invalid `difficulty` length; expected: 32, given: %v", shared.ErrInvalidArgument, len(difficulty))
	}
	return nil
}

// validateRange checks a range before anything is written, so that a failed call never leaves a partially filled buffer.
func validateRange(start, end, capacity uint64, out []byte) error {
	if start > end {
		return fmt.Errorf("%w: start (%d) > end (%d)", shared.ErrInvalidLabelsRange, start, end)
	}
	if end >= capacity {
		return fmt.Errorf("%w: end (%d) exceeds capacity (%d)", shared.ErrInvalidLabelsRange, end, capacity)
	}
	if end-start >= math.MaxUint64/shared.LabelLength {
		return fmt.Errorf("%w: range [%d, %d] is too large", shared.ErrInvalidLabelsRange, start, end)
	}
	if need := (end - start + 1) * shared.LabelLength; uint64(len(out)) < need {
		return fmt.Errorf("%w: output buffer of %d bytes, need %d", shared.ErrInvalidArgument, len(out), need)
	}
	return nil
}

// belowDifficulty reports whether raw, read as a big-endian integer, is smaller than difficulty.
func belowDifficulty(raw, difficulty []byte) bool {
	return bytes.Compare(raw, difficulty) < 0
}
