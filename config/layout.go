package config

import (
	"github.com/spacemeshos/post-engine/shared"
)

type FilesLayout struct {
	NumFiles          uint
	FileNumLabels     uint64
	LastFileNumLabels uint64
}

func DeriveFilesLayout(cfg Config, opts InitOpts) FilesLayout {
	maxFileNumLabels := opts.MaxFileSize / shared.LabelLength
	numLabels := cfg.LabelsPerUnit * uint64(opts.NumUnits)
	if maxFileNumLabels == 0 || numLabels == 0 {
		return FilesLayout{}
	}
	numFiles := numLabels / maxFileNumLabels

	lastFileNumLabels := maxFileNumLabels
	remainder := numLabels % maxFileNumLabels
	if remainder > 0 {
		numFiles++
		lastFileNumLabels = remainder
	}

	return FilesLayout{
		NumFiles:          uint(numFiles),
		FileNumLabels:     maxFileNumLabels,
		LastFileNumLabels: lastFileNumLabels,
	}
}

// FileRange returns the first and the last label index stored in the file with the given index.
func (l FilesLayout) FileRange(fileIndex int) (first, last uint64) {
	first = uint64(fileIndex) * l.FileNumLabels
	numLabels := l.FileNumLabels
	if uint(fileIndex) == l.NumFiles-1 {
		numLabels = l.LastFileNumLabels
	}
	return first, first + numLabels - 1
}
