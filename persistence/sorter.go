package persistence

import (
	"os"
	"sort"
)

// NumericalSorter orders label files by the index in their name.
type NumericalSorter []os.FileInfo

// A compile time check to ensure that NumericalSorter fully implements sort.Interface.
var _ sort.Interface = (*NumericalSorter)(nil)

func (s NumericalSorter) Len() int      { return len(s) }
func (s NumericalSorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s NumericalSorter) Less(i, j int) bool {
	pathA := s[i].Name()
	pathB := s[j].Name()

	a, ok1 := ParseFileIndex(pathA)
	b, ok2 := ParseFileIndex(pathB)

	// If any were not numbers, sort lexicographically.
	if !ok1 || !ok2 {
		return pathA < pathB
	}

	return a < b
}
