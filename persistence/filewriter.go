package persistence

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spacemeshos/post-engine/shared"
)

type FileWriter struct {
	file *os.File
	buf  *bufio.Writer
}

// NewFileWriter opens filename for appending labels. Existing labels are kept.
func NewFileWriter(filename string) (*FileWriter, error) {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY, shared.OwnerReadWrite)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return &FileWriter{
		file: f,
		buf:  bufio.NewWriter(f),
	}, nil
}

func (w *FileWriter) Write(b []byte) error {
	if len(b)%shared.LabelLength != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of labels", shared.ErrInvalidArgument, len(b))
	}
	_, err := w.buf.Write(b)
	return err
}

// NumLabelsWritten returns the number of labels in the file, buffered ones included.
func (w *FileWriter) NumLabelsWritten() (uint64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return (uint64(info.Size()) + uint64(w.buf.Buffered())) / shared.LabelLength, nil
}

// Truncate cuts the file down to numLabels labels and positions the writer after them.
func (w *FileWriter) Truncate(numLabels uint64) error {
	if err := w.Flush(); err != nil {
		return err
	}
	size := int64(numLabels * shared.LabelLength)
	if err := w.file.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}
	if _, err := w.file.Seek(size, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek file: %w", err)
	}
	return nil
}

func (w *FileWriter) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush disk writer: %w", err)
	}

	return nil
}

func (w *FileWriter) Close() (*os.FileInfo, error) {
	err := w.buf.Flush()
	if err != nil {
		return nil, err
	}
	w.buf = nil

	info, err := w.file.Stat()
	if err != nil {
		return nil, err
	}

	err = w.file.Close()
	if err != nil {
		return nil, err
	}
	w.file = nil

	return &info, nil
}
