package bitstream

import (
	"io"
)

// BitReader reads bits from an io.Reader.
type BitReader struct {
	stream    io.Reader
	pending   [1]byte
	remaining uint8
}

// NewReader returns a new instance of BitReader.
func NewReader(r io.Reader) *BitReader {
	return &BitReader{stream: r}
}

// ReadUint64LE reads the next numBits from the stream as uint64, least-significant bit first.
func (br *BitReader) ReadUint64LE(numBits int) (uint64, error) {
	var val uint64
	for i := 0; i < numBits; i++ {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit {
			val |= 1 << uint(i)
		}
	}
	return val, nil
}

// ReadBit reads the next single bit from the stream, LSB first.
func (br *BitReader) ReadBit() (Bit, error) {
	if br.remaining == 0 {
		if _, err := io.ReadFull(br.stream, br.pending[:]); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return Zero, err
		}
		br.remaining = 8
	}

	lsb := Bit(br.pending[0]&1 == 1)
	br.pending[0] >>= 1
	br.remaining--

	return lsb, nil
}
