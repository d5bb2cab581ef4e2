package initialization

import (
	"context"
	"fmt"
	"math"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/labels"
	"github.com/spacemeshos/post-engine/shared"
)

// NewLabeler creates the labeler of scheme for a commitment over numLabels labels.
// Nonces are labels whose raw value is below shared.NonceDifficulty(numLabels).
func NewLabeler(scheme string, commitment []byte, numLabels uint64, scrypt shared.ScryptParams) (labels.Labeler, error) {
	difficulty := shared.NonceDifficulty(numLabels)
	switch scheme {
	case shared.LabelSchemeKeystream:
		return labels.NewKeystream(commitment, difficulty[:], labels.WithCapacity(numLabels))
	case shared.LabelSchemeScrypt:
		return labels.NewScryptLabeler(commitment, difficulty[:], scrypt, labels.WithCapacity(numLabels))
	default:
		return nil, fmt.Errorf("%w: unknown label scheme %q", shared.ErrInvalidArgument, scheme)
	}
}

// ComputeLabels derives the labels [start, end] on provider. The whole range is
// returned or nothing: on any result other than the two Ok ones the output is nil.
// Accelerator providers are used by one caller at a time.
func ComputeLabels(ctx context.Context, provider compute.Provider, labeler labels.Labeler, start, end uint64) ([]byte, *uint64, InitializeResult) {
	if err := ctx.Err(); err != nil {
		return nil, nil, InitializeError
	}
	if start > end || end-start >= math.MaxInt32/shared.LabelLength {
		return nil, nil, InitializeInvalidLabelsRange
	}
	if labeler == nil {
		return nil, nil, InitializeInvalidArgument
	}

	if provider.DeviceType == compute.ClassGPU {
		lock := compute.DeviceLock(provider.ID)
		lock.Lock()
		defer lock.Unlock()
	}

	out := make([]byte, (end-start+1)*shared.LabelLength)
	nonce, err := labeler.Derive(start, end, out)
	if err != nil {
		return nil, nil, ResultFromError(err, nil)
	}
	return out, nonce, ResultFromError(nil, nonce)
}
