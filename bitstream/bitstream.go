// Package bitstream provides wrappers for io.Writer and io.Reader to allow
// bit-granularity access to the stream, following the LSB pattern, where
// least-significant bits are written/read first.
package bitstream

type Bit bool

const (
	Zero Bit = false
	One  Bit = true
)

// Size returns the number of bytes required to hold count items of bits each.
func Size(bits, count uint) uint {
	total := bits * count
	return (total + 7) / 8
}
