package verifying

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSamplePositions_All(t *testing.T) {
	challenge := bytes.Repeat([]byte{0x07}, 32)
	for _, k3 := range []uint32{10, 11, 100} {
		positions := SamplePositions(challenge, 3, 10, k3)
		require.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, positions)
	}
}

func TestSamplePositions(t *testing.T) {
	challenge := bytes.Repeat([]byte{0x07}, 32)
	const k2, k3 = 100, 30

	positions := SamplePositions(challenge, 5, k2, k3)
	require.Len(t, positions, k3)

	seen := make(map[uint32]struct{}, k3)
	for _, pos := range positions {
		require.Less(t, pos, uint32(k2))
		require.NotContains(t, seen, pos)
		seen[pos] = struct{}{}
	}

	require.Equal(t, positions, SamplePositions(challenge, 5, k2, k3))
	require.NotEqual(t, positions, SamplePositions(challenge, 6, k2, k3))

	other := bytes.Clone(challenge)
	other[0] ^= 1
	require.NotEqual(t, positions, SamplePositions(other, 5, k2, k3))
}

func TestSamplePositions_AllButOne(t *testing.T) {
	positions := SamplePositions(make([]byte, 32), 0, 8, 7)
	require.Len(t, positions, 7)

	seen := make(map[uint32]struct{})
	for _, pos := range positions {
		seen[pos] = struct{}{}
	}
	require.Len(t, seen, 7)
}

func TestSamplePositions_Zero(t *testing.T) {
	require.Empty(t, SamplePositions(make([]byte, 32), 0, 8, 0))
}

func TestResult(t *testing.T) {
	require.NoError(t, Ok.Err())
	require.Equal(t, "ok", Ok.String())
	require.ErrorIs(t, Invalid.Err(), ErrInvalidProof)
	require.Equal(t, "failed_to_create_verifier", FailedToCreateVerifier.String())
	require.Equal(t, "unknown(42)", Result(42).String())
	require.Error(t, Result(42).Err())

	res, err := fail(Failed, "reading %d: %w", 3, ErrVerifierClosed)
	require.Equal(t, Failed, res)
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.ErrorIs(t, err, ErrVerifierClosed)
	require.Equal(t, "verification failed: reading 3: verifier is closed", err.Error())
}
