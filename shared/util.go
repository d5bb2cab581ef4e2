package shared

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	xdr "github.com/nullstyle/go-xdr/xdr3"
)

const proofsDirName = "proofs"

// persistedProof is the on-disk envelope of a proof and the metadata it was generated for.
type persistedProof struct {
	Proof    Proof
	Metadata ProofMetadata
}

func GetProofsDir(datadir string) string {
	return filepath.Join(datadir, proofsDirName)
}

func GetProofFilename(datadir string, challenge []byte) string {
	// Use a special name for the zero-length challenge, which otherwise
	// will result in empty filename.
	c := hex.EncodeToString(challenge)
	if c == "" {
		c = "0"
	}

	return filepath.Join(GetProofsDir(datadir), c)
}

// PersistProof stores the proof in the datadir, keyed by the challenge it answers.
func PersistProof(datadir string, proof *Proof, metadata *ProofMetadata) error {
	var w bytes.Buffer
	if _, err := xdr.Marshal(&w, &persistedProof{Proof: *proof, Metadata: *metadata}); err != nil {
		return fmt.Errorf("serialization failure: %w", err)
	}

	if err := os.MkdirAll(GetProofsDir(datadir), OwnerReadWriteExec); err != nil {
		return fmt.Errorf("dir creation failure: %w", err)
	}

	filename := GetProofFilename(datadir, metadata.Challenge)
	if err := os.WriteFile(filename, w.Bytes(), OwnerReadWrite); err != nil {
		return fmt.Errorf("write to disk failure: %w", err)
	}

	return nil
}

// FetchProof loads a proof previously stored with PersistProof.
func FetchProof(datadir string, challenge []byte) (*Proof, *ProofMetadata, error) {
	data, err := os.ReadFile(GetProofFilename(datadir, challenge))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil, ErrProofNotExist
	case err != nil:
		return nil, nil, fmt.Errorf("read file failure: %w", err)
	}

	var p persistedProof
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &p); err != nil {
		return nil, nil, fmt.Errorf("deserialization failure: %w", err)
	}

	return &p.Proof, &p.Metadata, nil
}
