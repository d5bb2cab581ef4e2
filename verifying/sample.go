package verifying

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/blake3"
)

// SamplePositions selects k3 distinct positions out of k2 proof indices. The selection is
// seeded by challenge and nonce, so every verifier of a proof checks the same indices.
// Positions are returned in the order they were drawn. With k3 >= k2 every position is returned.
func SamplePositions(challenge []byte, nonce uint32, k2, k3 uint32) []uint32 {
	if k3 >= k2 {
		positions := make([]uint32, k2)
		for i := range positions {
			positions[i] = uint32(i)
		}
		return positions
	}

	h := blake3.New()
	h.Write(challenge)
	h.Write(binary.LittleEndian.AppendUint32(nil, nonce))
	xof := h.Digest()

	// Values at or above limit would favor the first positions.
	limit := math.MaxUint32 - math.MaxUint32%k2
	chosen := make(map[uint32]struct{}, k3)
	positions := make([]uint32, 0, k3)
	var buf [4]byte
	for uint32(len(positions)) < k3 {
		if _, err := xof.Read(buf[:]); err != nil {
			panic(err) // the blake3 output stream never ends.
		}
		v := binary.LittleEndian.Uint32(buf[:])
		if v >= limit {
			continue
		}
		pos := v % k2
		if _, ok := chosen[pos]; ok {
			continue
		}
		chosen[pos] = struct{}{}
		positions = append(positions, pos)
	}
	return positions
}
