package labels

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/spacemeshos/post-engine/shared"
)

const keyDomain = "post-label-key"

// Keystream derives labels as an AES-256 keystream in counter mode, keyed from
// the commitment and indexed by the absolute label index. Every index owns two
// counter blocks, so any label can be computed on its own.
//
// A Keystream is immutable and safe for concurrent use.
type Keystream struct {
	block      cipher.Block
	difficulty [32]byte
	capacity   uint64
}

var _ Labeler = (*Keystream)(nil)

// NewKeystream creates a keystream for commitment. Labels whose raw value is below
// difficulty (32 bytes, big-endian) are reported as nonces.
func NewKeystream(commitment, difficulty []byte, opts ...OptionFunc) (*Keystream, error) {
	if err := validateKeys(commitment, difficulty); err != nil {
		return nil, err
	}
	options, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	h := blake3.New()
	h.Write([]byte(keyDomain))
	h.Write(commitment)
	block, err := aes.NewCipher(h.Sum(nil)[:32])
	if err != nil {
		return nil, err
	}

	k := &Keystream{
		block:    block,
		capacity: options.capacity,
	}
	copy(k.difficulty[:], difficulty)
	return k, nil
}

// Derive implements Labeler.
func (k *Keystream) Derive(start, end uint64, out []byte) (*uint64, error) {
	if k == nil || k.block == nil {
		return nil, shared.ErrInvalidArgument
	}
	if err := validateRange(start, end, k.capacity, out); err != nil {
		return nil, err
	}

	var nonce *uint64
	var raw [RawLength]byte
	for i := start; ; i++ {
		k.raw(i, raw[:])
		copy(out[(i-start)*shared.LabelLength:], raw[:shared.LabelLength])
		if nonce == nil && belowDifficulty(raw[:], k.difficulty[:]) {
			nonce = new(uint64)
			*nonce = i
		}
		if i == end {
			break
		}
	}
	return nonce, nil
}

// Label returns the label at index.
func (k *Keystream) Label(index uint64) []byte {
	var raw [RawLength]byte
	k.raw(index, raw[:])
	return raw[:shared.LabelLength]
}

// Raw returns the full keystream output of index, the value compared against the difficulty.
func (k *Keystream) Raw(index uint64) []byte {
	raw := make([]byte, RawLength)
	k.raw(index, raw)
	return raw
}

func (k *Keystream) raw(index uint64, out []byte) {
	var ctr [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(ctr[:8], index)
	for j := 0; j < RawLength/aes.BlockSize; j++ {
		binary.LittleEndian.PutUint32(ctr[8:12], uint32(j))
		k.block.Encrypt(out[j*aes.BlockSize:], ctr[:])
	}
}
