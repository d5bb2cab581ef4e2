package labels_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/labels"
	"github.com/spacemeshos/post-engine/shared"
)

func TestScryptLabeler(t *testing.T) {
	params := shared.ScryptParams{N: 16, R: 1, P: 1}
	l, err := labels.NewScryptLabeler(testCommitment(), maxDifficulty(), params)
	require.NoError(t, err)

	out := make([]byte, 4*shared.LabelLength)
	nonce, err := l.Derive(0, 3, out)
	require.NoError(t, err)
	require.NotNil(t, nonce)
	require.EqualValues(t, 0, *nonce)

	for i := uint64(0); i < 4; i++ {
		label, err := l.Label(i)
		require.NoError(t, err)
		require.Equal(t, out[i*shared.LabelLength:(i+1)*shared.LabelLength], label)
	}

	// Different cost parameters produce different labels.
	l2, err := labels.NewScryptLabeler(testCommitment(), maxDifficulty(), shared.ScryptParams{N: 32, R: 1, P: 1})
	require.NoError(t, err)
	label, err := l2.Label(0)
	require.NoError(t, err)
	require.NotEqual(t, out[:shared.LabelLength], label)
}

func TestScryptLabelerInvalidParams(t *testing.T) {
	_, err := labels.NewScryptLabeler(testCommitment(), maxDifficulty(), shared.ScryptParams{N: 3, R: 1, P: 1})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
