package shared_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/shared"
)

func TestRequiredBits(t *testing.T) {
	require.EqualValues(t, 1, shared.RequiredBits(0))
	require.EqualValues(t, 1, shared.RequiredBits(1))
	require.EqualValues(t, 1, shared.RequiredBits(2))
	require.EqualValues(t, 2, shared.RequiredBits(3))
	require.EqualValues(t, 16, shared.RequiredBits(1<<16))
	require.EqualValues(t, 17, shared.RequiredBits(1<<16+1))
}

func TestCompressIndices(t *testing.T) {
	indices := []uint64{0, 1, 5, 6, 7}
	data, err := shared.CompressIndices(indices, 3)
	require.NoError(t, err)
	require.Len(t, data, 2)

	got, err := shared.DecompressIndices(data, 3, uint(len(indices)))
	require.NoError(t, err)
	require.Equal(t, indices, got)
}

func TestCompressIndicesTooWide(t *testing.T) {
	_, err := shared.CompressIndices([]uint64{8}, 3)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestDecompressIndicesRejectsMalformed(t *testing.T) {
	data, err := shared.CompressIndices([]uint64{1, 2, 3}, 3)
	require.NoError(t, err)

	_, err = shared.DecompressIndices(data, 3, 6)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = shared.DecompressIndices(append(data, 0), 3, 3)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	tampered := append([]byte{}, data...)
	tampered[1] |= 0x80 // padding bit
	_, err = shared.DecompressIndices(tampered, 3, 3)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = shared.DecompressIndices(data, 0, 3)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
