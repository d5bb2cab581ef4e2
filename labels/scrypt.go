package labels

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/spacemeshos/post-engine/shared"
)

// ScryptLabeler derives the legacy scrypt labels: the scrypt key of the
// commitment salted with the little-endian index. It is kept to verify data
// directories initialized before the keystream labels.
type ScryptLabeler struct {
	commitment []byte
	difficulty [32]byte
	params     shared.ScryptParams
	capacity   uint64
}

var _ Labeler = (*ScryptLabeler)(nil)

func NewScryptLabeler(commitment, difficulty []byte, params shared.ScryptParams, opts ...OptionFunc) (*ScryptLabeler, error) {
	if err := validateKeys(commitment, difficulty); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &ScryptLabeler{
		commitment: append([]byte(nil), commitment...),
		params:     params,
		capacity:   options.capacity,
	}
	copy(l.difficulty[:], difficulty)
	return l, nil
}

// Derive implements Labeler.
func (l *ScryptLabeler) Derive(start, end uint64, out []byte) (*uint64, error) {
	if err := validateRange(start, end, l.capacity, out); err != nil {
		return nil, err
	}

	raws := make([][]byte, 0, end-start+1)
	var nonce *uint64
	for i := start; ; i++ {
		raw, err := l.raw(i)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
		if nonce == nil && belowDifficulty(raw, l.difficulty[:]) {
			nonce = new(uint64)
			*nonce = i
		}
		if i == end {
			break
		}
	}

	for i, raw := range raws {
		copy(out[i*shared.LabelLength:], raw[:shared.LabelLength])
	}
	return nonce, nil
}

// Label returns the label at index.
func (l *ScryptLabeler) Label(index uint64) ([]byte, error) {
	raw, err := l.raw(index)
	if err != nil {
		return nil, err
	}
	return raw[:shared.LabelLength], nil
}

func (l *ScryptLabeler) raw(index uint64) ([]byte, error) {
	var salt [8]byte
	binary.LittleEndian.PutUint64(salt[:], index)
	raw, err := scrypt.Key(l.commitment, salt[:], int(l.params.N), int(l.params.R), int(l.params.P), RawLength)
	if err != nil {
		return nil, fmt.Errorf("scrypt label %d: %w", index, err)
	}
	return raw, nil
}
