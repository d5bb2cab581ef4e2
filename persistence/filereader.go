package persistence

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spacemeshos/post-engine/shared"
)

type FileReader struct {
	file *os.File
	buf  *bufio.Reader
}

// A compile time check to ensure that FileReader fully implements the Reader interface.
var _ Reader = (*FileReader)(nil)

func NewFileReader(name string) (*FileReader, error) {
	file, err := os.OpenFile(name, os.O_RDONLY, shared.OwnerReadWrite)
	if err != nil {
		return nil, fmt.Errorf("failed to open file for labels reader: %w", err)
	}

	return &FileReader{
		file: file,
		buf:  bufio.NewReader(file),
	}, nil
}

func (r *FileReader) Read(p []byte) (int, error) {
	return r.buf.Read(p)
}

// ReadAt reads labels at an absolute byte offset of the file. It does not move the stream position.
func (r *FileReader) ReadAt(p []byte, off int64) (int, error) {
	return r.file.ReadAt(p, off)
}

func (r *FileReader) NumLabels() (uint64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()) / shared.LabelLength, nil
}

func (r *FileReader) Close() error {
	r.buf = nil
	return r.file.Close()
}
