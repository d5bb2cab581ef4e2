// Package gpu implements the accelerator side of proof search. Accelerators
// score labels with a cipher scheme instead of the memory-hard oracle: every
// nonce group owns an AES-128 key whose output bytes are compared against the
// most significant byte of the proving difficulty, and ties are settled by a
// per-nonce "lazy" cipher holding the remaining 56 bits.
package gpu

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/spacemeshos/post-engine/shared"
)

// KeySize is the size of a cipher key in bytes.
const KeySize = 16

var ErrInvalidKeys = errors.New("invalid cipher keys")

// CipherKey returns the key of a nonce group.
func CipherKey(challenge []byte, group uint32, pow uint64) []byte {
	h := blake3.New()
	h.Write(challenge)
	h.Write(binary.LittleEndian.AppendUint32(nil, group))
	h.Write(binary.LittleEndian.AppendUint64(nil, pow))
	return h.Sum(nil)[:KeySize]
}

// LazyCipherKey returns the key of a single nonce. It is only used when the
// group cipher output equals the most significant difficulty byte.
func LazyCipherKey(challenge []byte, nonce, group uint32, pow uint64) []byte {
	h := blake3.New()
	h.Write(challenge)
	h.Write(binary.LittleEndian.AppendUint32(nil, group))
	h.Write(binary.LittleEndian.AppendUint64(nil, pow))
	h.Write(binary.LittleEndian.AppendUint32(nil, nonce))
	return h.Sum(nil)[:KeySize]
}

// Keys holds the key material of a nonce window.
type Keys struct {
	// Cipher holds one key per nonce group, KeySize bytes each.
	Cipher []byte
	// Lazy holds one key per nonce, KeySize bytes each.
	Lazy []byte
}

// DeriveKeys builds the keys of the nonces [startNonce, startNonce+nonces).
// pows holds the proof of work of every group of the window.
func DeriveKeys(challenge []byte, startNonce, nonces uint32, pows []uint64) (Keys, error) {
	if startNonce%shared.NoncesPerGroup != 0 || nonces == 0 || nonces%shared.NoncesPerGroup != 0 {
		return Keys{}, fmt.Errorf("%w: nonce window [%d, +%d) is not aligned to %d", ErrInvalidKeys, startNonce, nonces, shared.NoncesPerGroup)
	}
	groups := nonces / shared.NoncesPerGroup
	if uint32(len(pows)) != groups {
		return Keys{}, fmt.Errorf("%w: expected %d pows, given %d", ErrInvalidKeys, groups, len(pows))
	}

	keys := Keys{
		Cipher: make([]byte, 0, groups*KeySize),
		Lazy:   make([]byte, 0, nonces*KeySize),
	}
	firstGroup := shared.NonceGroup(startNonce)
	for i, pow := range pows {
		keys.Cipher = append(keys.Cipher, CipherKey(challenge, firstGroup+uint32(i), pow)...)
	}
	for i := uint32(0); i < nonces; i++ {
		nonce := startNonce + i
		group := shared.NonceGroup(nonce)
		keys.Lazy = append(keys.Lazy, LazyCipherKey(challenge, nonce, group, pows[group-firstGroup])...)
	}
	return keys, nil
}

func newCiphers(keys []byte) ([]cipher.Block, error) {
	if len(keys)%KeySize != 0 {
		return nil, fmt.Errorf("%w: key material of %d bytes", ErrInvalidKeys, len(keys))
	}
	ciphers := make([]cipher.Block, 0, len(keys)/KeySize)
	for i := 0; i < len(keys); i += KeySize {
		block, err := aes.NewCipher(keys[i : i+KeySize])
		if err != nil {
			return nil, err
		}
		ciphers = append(ciphers, block)
	}
	return ciphers, nil
}

// lazyBelow reports whether the low 56 bits of the lazy cipher output of label are below lsb.
func lazyBelow(lazy cipher.Block, label []byte, lsb uint64) bool {
	var out [aes.BlockSize]byte
	lazy.Encrypt(out[:], label)
	return binary.LittleEndian.Uint64(out[:8])&0x00ff_ffff_ffff_ffff < lsb
}

// Qualifies reports whether label qualifies for nonce under the cipher scheme.
// It re-derives both keys and is meant for verification of single labels.
func Qualifies(challenge []byte, nonce uint32, pow uint64, label []byte, difficulty uint64) (bool, error) {
	if len(label) != shared.LabelLength {
		return false, fmt.Errorf("%w: label of %d bytes", shared.ErrInvalidArgument, len(label))
	}
	msb, lsb := shared.SplitDifficulty(difficulty)
	group := shared.NonceGroup(nonce)

	block, err := aes.NewCipher(CipherKey(challenge, group, pow))
	if err != nil {
		return false, err
	}
	var out [aes.BlockSize]byte
	block.Encrypt(out[:], label)

	b := out[nonce%shared.NoncesPerGroup]
	switch {
	case b < msb:
		return true, nil
	case b > msb:
		return false, nil
	}

	lazy, err := aes.NewCipher(LazyCipherKey(challenge, nonce, group, pow))
	if err != nil {
		return false, err
	}
	return lazyBelow(lazy, label, lsb), nil
}
