package persistence

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/post-engine/shared"
)

func TestGroup(t *testing.T) {
	r := require.New(t)

	// Create 9 labels.
	labels := genLabels(9)

	// Split the labels into 3 separate readers.
	readers := []Reader{
		newSliceReader(labels[0:3]),
		newSliceReader(labels[3:6]),
		newSliceReader(labels[6:9]),
	}
	reader, err := Group(readers)
	r.NoError(err)

	numLabels, err := reader.NumLabels()
	r.NoError(err)
	r.Equal(uint64(len(labels)), numLabels)

	for _, label := range labels {
		p := make([]byte, shared.LabelLength)
		_, err = reader.Read(p)
		r.NoError(err)
		r.Equal(label, p)
	}

	// Verify EOF.
	p := make([]byte, shared.LabelLength)
	_, err = reader.Read(p)
	r.Equal(io.EOF, err)
	r.Equal(make([]byte, shared.LabelLength), p) // empty.

	r.NoError(reader.Close())
}

func TestGroupWithShorterLastReader(t *testing.T) {
	r := require.New(t)

	labels := genLabels(7)
	readers := []Reader{
		newSliceReader(labels[0:3]),
		newSliceReader(labels[3:6]),
		newSliceReader(labels[6:7]),
	}
	reader, err := Group(readers)
	r.NoError(err)

	numLabels, err := reader.NumLabels()
	r.NoError(err)
	r.Equal(uint64(len(labels)), numLabels)

	all, err := io.ReadAll(reader)
	r.NoError(err)
	r.Len(all, len(labels)*shared.LabelLength)
	r.Equal(labels[6], all[6*shared.LabelLength:])
}

func TestGroupWithShorterMidReader(t *testing.T) {
	r := require.New(t)

	labels := genLabels(7)
	readers := []Reader{
		newSliceReader(labels[0:3]),
		newSliceReader(labels[3:4]),
		newSliceReader(labels[4:7]),
	}
	_, err := Group(readers)
	r.EqualError(err, "readers' number of labels mismatch")

	_, err = Group(readers[:1])
	r.Error(err)
}

func genLabels(num int) [][]byte {
	labels := make([][]byte, num)
	for i := 0; i < num; i++ {
		labels[i] = newLabelFromUint64(uint64(i))
	}
	return labels
}

func newLabelFromUint64(i uint64) []byte {
	b := make([]byte, shared.LabelLength)
	binary.LittleEndian.PutUint64(b, i)
	return b
}

type sliceReader struct {
	slice    [][]byte
	position uint64
}

// A compile time check to ensure that sliceReader fully implements the Reader interface.
var _ Reader = (*sliceReader)(nil)

func newSliceReader(slice [][]byte) *sliceReader {
	return &sliceReader{
		slice: slice,
	}
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.position >= uint64(len(s.slice)) {
		return 0, io.EOF
	}
	n := copy(p, s.slice[s.position])
	s.position++
	return n, nil
}

func (s *sliceReader) NumLabels() (uint64, error) {
	return uint64(len(s.slice)), nil
}

func (s *sliceReader) Close() error {
	return nil
}
