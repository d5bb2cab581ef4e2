package oracle_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/oracle"
)

func TestFindPow(t *testing.T) {
	o, err := oracle.New(context.Background(), oracle.FlagDefault, oracle.TestParams())
	require.NoError(t, err)
	defer o.Close()

	challenge := bytes.Repeat([]byte{7}, 32)
	creator := bytes.Repeat([]byte{9}, 32)

	// Roughly one in 16 hashes is below this difficulty.
	var difficulty [32]byte
	difficulty[0] = 0x10

	pow, err := o.FindPow(context.Background(), challenge, 3, creator, difficulty)
	require.NoError(t, err)
	require.True(t, o.CheckPow(challenge, 3, creator, pow, difficulty))
	for p := uint64(0); p < pow; p++ {
		require.False(t, o.CheckPow(challenge, 3, creator, p, difficulty), "pow %d is smaller than the one found", p)
	}

	again, err := o.FindPow(context.Background(), challenge, 3, creator, difficulty)
	require.NoError(t, err)
	require.Equal(t, pow, again)

	hash := o.PowHash(challenge, 3, creator, pow)
	require.Less(t, hash[0], byte(0x10))
}

func TestFindPowCanceled(t *testing.T) {
	o, err := oracle.New(context.Background(), oracle.FlagDefault, oracle.TestParams())
	require.NoError(t, err)
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No hash is below a zero difficulty, the search only ends on cancellation.
	_, err = o.FindPow(ctx, make([]byte, 32), 0, nil, [32]byte{})
	require.ErrorIs(t, err, context.Canceled)
}
