package shared

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/spacemeshos/post-engine/bitstream"
)

// RequiredBits returns the number of bits needed to encode any index in [0, numLabels).
func RequiredBits(numLabels uint64) uint {
	if numLabels <= 1 {
		return 1
	}
	return uint(bits.Len64(numLabels - 1))
}

// CompressIndices packs indices with bitsPerIndex bits each, LSB first.
func CompressIndices(indices []uint64, bitsPerIndex uint) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, bitstream.Size(bitsPerIndex, uint(len(indices)))))
	w := bitstream.NewWriter(buf)
	for _, idx := range indices {
		if bitsPerIndex < 64 && idx>>bitsPerIndex != 0 {
			return nil, fmt.Errorf("%w: index %d does not fit in %d bits", ErrInvalidArgument, idx, bitsPerIndex)
		}
		if err := w.WriteUint64LE(idx, int(bitsPerIndex)); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(bitstream.Zero); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressIndices unpacks count indices of bitsPerIndex bits each. The data must be
// exactly as long as CompressIndices would have made it, with zeroed padding bits.
func DecompressIndices(data []byte, bitsPerIndex, count uint) ([]uint64, error) {
	if bitsPerIndex == 0 || bitsPerIndex > 64 {
		return nil, fmt.Errorf("%w: bits per index must be in [1, 64], given %d", ErrInvalidArgument, bitsPerIndex)
	}
	if uint(len(data)) != bitstream.Size(bitsPerIndex, count) {
		return nil, fmt.Errorf("%w: expected %d bytes for %d indices, given %d",
			ErrInvalidArgument, bitstream.Size(bitsPerIndex, count), count, len(data))
	}

	r := bitstream.NewReader(bytes.NewReader(data))
	indices := make([]uint64, 0, count)
	for i := uint(0); i < count; i++ {
		idx, err := r.ReadUint64LE(int(bitsPerIndex))
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}

	padding := uint(len(data))*8 - bitsPerIndex*count
	if pad, err := r.ReadUint64LE(int(padding)); err != nil || pad != 0 {
		return nil, fmt.Errorf("%w: non-zero padding bits", ErrInvalidArgument)
	}
	return indices, nil
}
