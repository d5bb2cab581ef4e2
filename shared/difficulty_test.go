package shared_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/shared"
)

func TestProvingDifficulty(t *testing.T) {
	d, err := shared.ProvingDifficulty(1<<16, 4096)
	require.NoError(t, err)
	require.Equal(t, uint64(1)<<60, d)

	_, err = shared.ProvingDifficulty(100, 100)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestSplitDifficulty(t *testing.T) {
	msb, lsb := shared.SplitDifficulty(0x1234_5678_9abc_def0)
	require.EqualValues(t, 0x12, msb)
	require.EqualValues(t, 0x34_5678_9abc_def0, lsb)
}

func TestScalePowDifficulty(t *testing.T) {
	var d [32]byte
	d[31] = 100

	require.Equal(t, d, shared.ScalePowDifficulty(d, 0))
	require.Equal(t, d, shared.ScalePowDifficulty(d, 1))

	scaled := shared.ScalePowDifficulty(d, 4)
	require.EqualValues(t, 25, scaled[31])
	require.True(t, bytes.Equal(scaled[:31], make([]byte, 31)))
}

func TestNonceDifficulty(t *testing.T) {
	all := shared.NonceDifficulty(1)
	require.Equal(t, bytes.Repeat([]byte{0xff}, 32), all[:])

	d := shared.NonceDifficulty(256)
	require.EqualValues(t, 0x00, d[0])
	require.EqualValues(t, 0xff, d[1])
}
