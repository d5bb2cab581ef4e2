package shared_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/shared"
)

func TestMarshalNonceValue(t *testing.T) {
	n := shared.NonceValue{0x01, 0x02, 0x03}
	data, err := n.MarshalJSON()
	require.NoError(t, err)
	require.EqualValues(t, `"010203"`, data)
}

func TestUnmarshalNonceValue(t *testing.T) {
	data := `"010203"`
	n := shared.NonceValue{}
	err := n.UnmarshalJSON([]byte(data))
	require.NoError(t, err)
	require.Equal(t, shared.NonceValue{0x01, 0x02, 0x03}, n)
}

func TestPostMetadataRoundTrip(t *testing.T) {
	nonce := uint64(77)
	m := shared.PostMetadata{
		NodeId:          make([]byte, 32),
		CommitmentAtxId: []byte{0xaa, 0xbb},
		LabelsPerUnit:   1024,
		NumUnits:        2,
		MaxFileSize:     4096,
		Scrypt:          shared.ScryptParams{N: 8192, R: 1, P: 1},
		Nonce:           &nonce,
		NonceValue:      shared.NonceValue{0x01},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Contains(t, string(data), `"CommitmentAtxId":"aabb"`)

	var got shared.PostMetadata
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, m, got)
}

func TestScryptParamsValidate(t *testing.T) {
	p := shared.ScryptParams{N: 8192, R: 1, P: 1}
	require.NoError(t, p.Validate())

	p.N = 0
	require.Error(t, p.Validate())

	p.N = 100
	require.Error(t, p.Validate())

	p = shared.ScryptParams{N: 2, R: 0, P: 1}
	require.Error(t, p.Validate())
}
