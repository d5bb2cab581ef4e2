package persistence

import (
	"errors"
	"io"
)

type GroupReader struct {
	readers           []Reader
	activeReaderIndex int
	readerNumLabels   uint64
	lastNumLabels     uint64
}

// A compile time check to ensure that GroupReader fully implements the Reader interface.
var _ Reader = (*GroupReader)(nil)

// Group groups a slice of Reader into one continuous Reader.
func Group(readers []Reader) (*GroupReader, error) {
	if len(readers) < 2 {
		return nil, errors.New("number of readers must be at least 2")
	}

	// Verify that all readers, except the last one, have the same number of labels.
	var readerNumLabels uint64
	var lastNumLabels uint64
	for i := 0; i < len(readers); i++ {
		if readers[i] == nil {
			return nil, errors.New("nil readers are not allowed")
		}
		numLabels, err := readers[i].NumLabels()
		if err != nil {
			return nil, err
		}

		if numLabels == 0 {
			return nil, errors.New("0 labels readers are not allowed")
		}

		if i == len(readers)-1 {
			lastNumLabels = numLabels
			continue
		}

		if readerNumLabels == 0 {
			readerNumLabels = numLabels
		} else if numLabels != readerNumLabels {
			return nil, errors.New("readers' number of labels mismatch")
		}
	}

	if lastNumLabels > readerNumLabels {
		return nil, errors.New("last reader has more labels than the others")
	}

	return &GroupReader{
		readers:         readers,
		readerNumLabels: readerNumLabels,
		lastNumLabels:   lastNumLabels,
	}, nil
}

func (g *GroupReader) Read(p []byte) (int, error) {
	n, err := g.readers[g.activeReaderIndex].Read(p)
	if err == io.EOF && g.activeReaderIndex < len(g.readers)-1 {
		g.activeReaderIndex++
		if n > 0 {
			return n, nil
		}
		return g.Read(p)
	}
	return n, err
}

func (g *GroupReader) NumLabels() (uint64, error) {
	return uint64(len(g.readers)-1)*g.readerNumLabels + g.lastNumLabels, nil
}

func (g *GroupReader) Close() error {
	var errs []error
	for _, r := range g.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
