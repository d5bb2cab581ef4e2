package cmd

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	dir := t.TempDir()

	id, err := identity("", dir)
	require.NoError(t, err)
	require.Len(t, id, 32)
	require.NoError(t, checkKey(dir, id))
	require.Error(t, checkKey(dir, bytes.Repeat([]byte{0x01}, 32)))

	_, err = identity("", dir)
	require.ErrorIs(t, err, ErrKeyFileExists)

	given := bytes.Repeat([]byte{0xAB}, 32)
	id, err = identity(hex.EncodeToString(given), dir)
	require.NoError(t, err)
	require.Equal(t, given, id)

	_, err = identity("zz", dir)
	require.Error(t, err)
}

func TestCheckKey_Missing(t *testing.T) {
	require.Error(t, checkKey(t.TempDir(), make([]byte, 32)))
}

func TestDecodeChallenge(t *testing.T) {
	challenge, err := decodeChallenge("")
	require.NoError(t, err)
	require.Equal(t, make([]byte, 32), challenge)

	challenge, err = decodeChallenge(hex.EncodeToString(bytes.Repeat([]byte{0x11}, 32)))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x11}, 32), challenge)

	_, err = decodeChallenge("1122")
	require.Error(t, err)
}
