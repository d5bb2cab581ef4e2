package bitstream_test

import (
	"bytes"
	"io"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/bitstream"
)

func TestUint64LE(t *testing.T) {
	req := require.New(t)

	buf := bytes.NewBuffer(nil)
	w := bitstream.NewWriter(buf)
	from := uint64(1)
	to := uint64(1 << 12)

	for i := from; i < to; i++ {
		req.NoError(w.WriteUint64LE(i, bits.Len64(i)))
		req.NoError(w.WriteUint64LE(i, 64))
	}
	req.NoError(w.Flush(bitstream.Zero))

	r := bitstream.NewReader(buf)
	for i := from; i < to; i++ {
		num, err := r.ReadUint64LE(bits.Len64(i))
		req.NoError(err)
		req.Equal(i, num)
		num, err = r.ReadUint64LE(64)
		req.NoError(err)
		req.Equal(i, num)
	}
}

func TestWriteBitOrder(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w := bitstream.NewWriter(buf)

	// 0b101 followed by 0b11111 fills one byte: 0b11111_101.
	require.NoError(t, w.WriteUint64LE(0b101, 3))
	require.NoError(t, w.WriteUint64LE(0b11111, 5))
	require.Equal(t, []byte{0b11111101}, buf.Bytes())

	require.NoError(t, w.WriteBit(bitstream.One))
	require.NoError(t, w.Flush(bitstream.Zero))
	require.Equal(t, []byte{0b11111101, 0b00000001}, buf.Bytes())
}

func TestWriteByteUnaligned(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w := bitstream.NewWriter(buf)

	require.NoError(t, w.WriteBit(bitstream.One))
	require.NoError(t, w.WriteByte(0xFF))
	require.NoError(t, w.Flush(bitstream.Zero))
	require.Equal(t, []byte{0xFF, 0x01}, buf.Bytes())

	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	bit, err := r.ReadBit()
	require.NoError(t, err)
	require.Equal(t, bitstream.One, bit)
	v, err := r.ReadUint64LE(8)
	require.NoError(t, err)
	require.EqualValues(t, 0xFF, v)
}

func TestReadPastEnd(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0xAA}))
	_, err := r.ReadUint64LE(8)
	require.NoError(t, err)

	_, err = r.ReadBit()
	require.ErrorIs(t, err, io.EOF)
}

func TestSize(t *testing.T) {
	require.EqualValues(t, 100, bitstream.Size(16, 50))
	require.EqualValues(t, 1, bitstream.Size(1, 3))
	require.EqualValues(t, 2, bitstream.Size(3, 3))
	require.EqualValues(t, 0, bitstream.Size(7, 0))
}
