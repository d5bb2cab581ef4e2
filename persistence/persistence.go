// Package persistence stores labels in the data directory. Labels are split
// into numbered files postdata_0.bin, postdata_1.bin, ... which are read back
// as one continuous stream in numerical order.
package persistence

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spacemeshos/post-engine/shared"
)

const (
	fileNamePrefix = "postdata_"
	fileNameSuffix = ".bin"
)

// Reader is a stream of labels.
type Reader interface {
	io.Reader
	NumLabels() (uint64, error)
	Close() error
}

// InitFileName returns the name of the file with the given index.
func InitFileName(index int) string {
	return fmt.Sprintf("%s%d%s", fileNamePrefix, index, fileNameSuffix)
}

// ParseFileIndex returns the index encoded in a label file name.
func ParseFileIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, fileNamePrefix) || !strings.HasSuffix(name, fileNameSuffix) {
		return 0, false
	}
	index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, fileNamePrefix), fileNameSuffix))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

func IsInitFile(info os.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}
	_, ok := ParseFileIndex(info.Name())
	return ok
}

// InitFiles lists the label files of datadir in numerical order.
func InitFiles(datadir string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(datadir)
	if err != nil {
		return nil, fmt.Errorf("initialization directory not found: %w", err)
	}

	var files []os.FileInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if IsInitFile(info) {
			files = append(files, info)
		}
	}

	sort.Sort(NumericalSorter(files))
	return files, nil
}

// NewLabelsReader returns a new labels reader from the initialization files.
// If the initialization was split into multiple files, they will be grouped
// into one unified reader.
func NewLabelsReader(datadir string) (Reader, error) {
	readers, err := GetReaders(datadir)
	if err != nil {
		return nil, err
	}
	if len(readers) == 1 {
		return readers[0], nil
	}

	return Group(readers)
}

func GetReaders(datadir string) ([]Reader, error) {
	files, err := InitFiles(datadir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("initialization directory (%v) is empty", datadir)
	}

	readers := make([]Reader, 0, len(files))
	for _, file := range files {
		reader, err := NewFileReader(filepath.Join(datadir, file.Name()))
		if err != nil {
			for _, r := range readers {
				r.Close()
			}
			return nil, err
		}
		readers = append(readers, reader)
	}

	return readers, nil
}

func NewLabelsWriter(datadir string, index int) (*FileWriter, error) {
	if err := os.MkdirAll(datadir, shared.OwnerReadWriteExec); err != nil {
		return nil, err
	}

	filename := filepath.Join(datadir, InitFileName(index))
	return NewFileWriter(filename)
}

// NumBytesWritten sums the sizes of the label files in dir.
func NumBytesWritten(dir string) (uint64, error) {
	files, err := InitFiles(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	var numBytesWritten uint64
	for _, file := range files {
		numBytesWritten += uint64(file.Size())
	}
	return numBytesWritten, nil
}
