package shared

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Proof is the outcome of a successful proving round. Indices holds exactly K2
// ascending label indices, each encoded with RequiredBits(numLabels) bits.
type Proof struct {
	Nonce      uint32
	Indices    []byte
	Pow        uint64
	PowCreator []byte
}

// ProofMetadata binds a Proof to a dataset and a challenge.
type ProofMetadata struct {
	NodeId          []byte
	CommitmentAtxId []byte

	Challenge     []byte
	NumUnits      uint32
	LabelsPerUnit uint64
}

// NumLabels returns the size of the index space the proof was generated over.
func (m *ProofMetadata) NumLabels() uint64 {
	return uint64(m.NumUnits) * m.LabelsPerUnit
}

type HexEncoded []byte

func (h HexEncoded) String() string {
	return hex.EncodeToString(h)
}

// NonceGroup returns the group a nonce belongs to. All nonces of a group share one proof of work.
func NonceGroup(nonce uint32) uint32 {
	return nonce / NoncesPerGroup
}

// NonceChallenge derives the challenge that scores labels for a single nonce.
func NonceChallenge(challenge []byte, nonce uint32, pow uint64) [32]byte {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[:4], nonce)
	binary.LittleEndian.PutUint64(buf[4:], pow)

	h := blake3.New()
	h.Write(challenge)
	h.Write(buf[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// PowInput is the message the proof of work of a nonce group is computed over.
// The candidate pow value is appended to it by the caller.
func PowInput(challenge []byte, group uint32, creator []byte) []byte {
	input := make([]byte, 0, 4+len(challenge)+len(creator)+8)
	input = binary.LittleEndian.AppendUint32(input, group)
	input = append(input, challenge...)
	input = append(input, creator...)
	return input
}
