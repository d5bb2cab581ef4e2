package cmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spacemeshos/ed25519"
	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/shared"
)

const edKeyFileName = "key.bin"

var ErrKeyFileExists = errors.New("key file already exists")

// identity returns the node id given in hex, or generates a new key pair and stores its
// private key in the datadir when none is given.
func identity(idHex, datadir string) ([]byte, error) {
	if idHex != "" {
		id, err := hex.DecodeString(idHex)
		if err != nil {
			return nil, fmt.Errorf("invalid id: %w", err)
		}
		return id, nil
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity: %w", err)
	}
	if err := saveKey(datadir, priv); err != nil {
		return nil, err
	}
	logger.Info("generated identity", zap.Stringer("id", shared.HexEncoded(pub)))
	return pub, nil
}

func saveKey(datadir string, key ed25519.PrivateKey) error {
	if err := os.MkdirAll(datadir, shared.OwnerReadWriteExec); err != nil && !os.IsExist(err) {
		return fmt.Errorf("mkdir error: %w", err)
	}

	filename := filepath.Join(datadir, edKeyFileName)
	if _, err := os.Stat(filename); err == nil {
		return ErrKeyFileExists
	}

	if err := os.WriteFile(filename, []byte(hex.EncodeToString(key)), shared.OwnerReadWrite); err != nil {
		return fmt.Errorf("key write to disk error: %w", err)
	}
	return nil
}

// checkKey verifies that the key stored in the datadir belongs to nodeId.
func checkKey(datadir string, nodeId []byte) error {
	keyPath := filepath.Join(datadir, edKeyFileName)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("could not read private key from %s: %w", keyPath, err)
	}

	dst := make([]byte, ed25519.PrivateKeySize)
	n, err := hex.Decode(dst, bytes.TrimSpace(data))
	if err != nil {
		return fmt.Errorf("failed to decode private key from %s: %w", keyPath, err)
	}
	if n != ed25519.PrivateKeySize {
		return fmt.Errorf("size of key (%d) not expected size %d", n, ed25519.PrivateKeySize)
	}

	pub := ed25519.NewKeyFromSeed(dst[:ed25519.SeedSize]).Public().(ed25519.PublicKey)
	if !bytes.Equal(nodeId, pub) {
		return fmt.Errorf("node id %x does not match public key from %s (%x)", nodeId, edKeyFileName, []byte(pub))
	}
	return nil
}

func decodeChallenge(s string) ([]byte, error) {
	if s == "" {
		return make([]byte, 32), nil
	}
	challenge, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge: %w", err)
	}
	if len(challenge) != 32 {
		return nil, fmt.Errorf("invalid challenge length; expected: 32, given: %d", len(challenge))
	}
	return challenge, nil
}
