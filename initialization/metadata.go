package initialization

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/spacemeshos/post-engine/shared"
)

const MetadataFileName = "postdata_metadata.json"

var ErrStateMetadataFileMissing = shared.ErrStateMetadataFileMissing

// SaveMetadata atomically replaces the metadata file of dir.
func SaveMetadata(dir string, v *shared.PostMetadata) error {
	if err := os.MkdirAll(dir, shared.OwnerReadWriteExec); err != nil {
		return fmt.Errorf("dir creation failure: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialization failure: %w", err)
	}

	if err := atomic.WriteFile(filepath.Join(dir, MetadataFileName), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write to disk failure: %w", err)
	}

	return nil
}

func LoadMetadata(dir string) (*shared.PostMetadata, error) {
	filename := filepath.Join(dir, MetadataFileName)
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrStateMetadataFileMissing
		}
		return nil, fmt.Errorf("read file failure: %w", err)
	}

	metadata := shared.PostMetadata{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return &metadata, nil
}
