package shared_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/shared"
)

func TestPersistProof(t *testing.T) {
	dir := t.TempDir()
	challenge := []byte{1, 2, 3}

	proof := &shared.Proof{
		Nonce:      7,
		Indices:    []byte{0xde, 0xad},
		Pow:        12345,
		PowCreator: []byte{9, 9},
	}
	metadata := &shared.ProofMetadata{
		NodeId:          make([]byte, 32),
		CommitmentAtxId: make([]byte, 32),
		Challenge:       challenge,
		NumUnits:        4,
		LabelsPerUnit:   256,
	}

	require.NoError(t, shared.PersistProof(dir, proof, metadata))

	gotProof, gotMetadata, err := shared.FetchProof(dir, challenge)
	require.NoError(t, err)
	require.Equal(t, proof, gotProof)
	require.Equal(t, metadata, gotMetadata)
	require.EqualValues(t, 1024, gotMetadata.NumLabels())

	_, _, err = shared.FetchProof(dir, []byte{4})
	require.ErrorIs(t, err, shared.ErrProofNotExist)
}

func TestCommitmentBytes(t *testing.T) {
	a := shared.CommitmentBytes([]byte{1}, []byte{2})
	require.Len(t, a, 32)
	require.Equal(t, a, shared.CommitmentBytes([]byte{1}, []byte{2}))
	require.NotEqual(t, a, shared.CommitmentBytes([]byte{2}, []byte{1}))
}

func TestNonceChallenge(t *testing.T) {
	ch := make([]byte, 32)
	a := shared.NonceChallenge(ch, 1, 0)
	require.Equal(t, a, shared.NonceChallenge(ch, 1, 0))
	require.NotEqual(t, a, shared.NonceChallenge(ch, 2, 0))
	require.NotEqual(t, a, shared.NonceChallenge(ch, 1, 1))

	require.EqualValues(t, 0, shared.NonceGroup(15))
	require.EqualValues(t, 1, shared.NonceGroup(16))
}
