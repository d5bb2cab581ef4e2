package bitstream

import (
	"io"
)

// BitWriter writes bits to an io.Writer.
type BitWriter struct {
	stream    io.Writer
	pending   [1]byte
	alignment uint8
}

// NewWriter returns a new instance of BitWriter.
func NewWriter(w io.Writer) *BitWriter {
	return &BitWriter{stream: w}
}

// WriteUint64LE writes the numBits LS bits of val, least-significant bit first.
func (bw *BitWriter) WriteUint64LE(val uint64, numBits int) error {
	for numBits >= 8 {
		if err := bw.WriteByte(byte(val)); err != nil {
			return err
		}
		val >>= 8
		numBits -= 8
	}

	for numBits > 0 {
		if err := bw.WriteBit(val&1 == 1); err != nil {
			return err
		}
		val >>= 1
		numBits--
	}

	return nil
}

// WriteByte writes a single byte to the stream, regardless of the alignment.
// If the byte is split due to alignment, its LS bits complete the pending byte.
func (bw *BitWriter) WriteByte(b byte) error {
	bw.pending[0] |= b << bw.alignment
	if err := bw.emit(); err != nil {
		return err
	}
	if bw.alignment > 0 {
		bw.pending[0] = b >> (8 - bw.alignment)
	}
	return nil
}

// WriteBit writes a single bit to the stream, LSB first.
func (bw *BitWriter) WriteBit(bit Bit) error {
	if bit {
		bw.pending[0] |= 1 << bw.alignment
	}
	bw.alignment++

	if bw.alignment == 8 {
		bw.alignment = 0
		return bw.emit()
	}
	return nil
}

// Flush flushes the currently pending byte to the stream by filling it with bit.
func (bw *BitWriter) Flush(bit Bit) error {
	for bw.alignment != 0 {
		if err := bw.WriteBit(bit); err != nil {
			return err
		}
	}
	return nil
}

func (bw *BitWriter) emit() error {
	n, err := bw.stream.Write(bw.pending[:])
	if err != nil {
		return err
	}
	if n != 1 {
		return io.ErrShortWrite
	}
	bw.pending[0] = 0
	return nil
}
