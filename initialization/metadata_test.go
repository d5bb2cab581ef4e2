package initialization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/shared"
)

func TestMetadata(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadMetadata(dir)
	require.ErrorIs(t, err, ErrStateMetadataFileMissing)

	nonce := uint64(12)
	m := &shared.PostMetadata{
		Version:         1,
		NodeId:          make([]byte, 32),
		CommitmentAtxId: make([]byte, 32),
		LabelsPerUnit:   512,
		NumUnits:        2,
		MaxFileSize:     4096,
		Nonce:           &nonce,
		NonceValue:      make([]byte, shared.LabelLength),
	}
	require.NoError(t, SaveMetadata(dir, m))

	got, err := LoadMetadata(dir)
	require.NoError(t, err)
	require.Equal(t, m, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("{"), shared.OwnerReadWrite))
	_, err = LoadMetadata(dir)
	require.ErrorContains(t, err, "failed to decode metadata")
}
