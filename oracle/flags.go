package oracle

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/cpu"
)

// ErrInvalidFlags is returned for a flag combination the oracle cannot run with.
var ErrInvalidFlags = errors.New("invalid oracle flags")

// Flags select the optimizations of the oracle. The bit values are stable and
// shared with every other implementation of the protocol.
//
// Only FlagFullMem changes how the oracle runs. HardAES, JIT, LargePages and the
// Argon2 variants are validated and otherwise ignored; they never change a result.
type Flags uint32

const (
	FlagDefault Flags = 0
	// Allocate memory in large pages.
	FlagLargePages Flags = 1
	// Use hardware accelerated AES.
	FlagHardAES Flags = 2
	// Use the full dataset. AKA "Fast mode".
	FlagFullMem Flags = 4
	// Use JIT compilation support.
	FlagJIT Flags = 8
	// When combined with FlagJIT, the JIT pages are never writable and executable at the same time.
	FlagSecure Flags = 16
	// Optimize Argon2 for CPUs with the SSSE3 instruction set.
	FlagArgon2SSSE3 Flags = 32
	// Optimize Argon2 for CPUs with the AVX2 instruction set.
	FlagArgon2AVX2 Flags = 64
	// Optimize Argon2 for CPUs without the AVX2 or SSSE3 instruction sets.
	FlagArgon2 Flags = 96

	flagsMask = FlagLargePages | FlagHardAES | FlagFullMem | FlagJIT | FlagSecure | FlagArgon2
)

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Validate checks that f is a combination the oracle supports.
func (f Flags) Validate() error {
	if f&^flagsMask != 0 {
		return fmt.Errorf("%w: unknown bits %#x", ErrInvalidFlags, uint32(f&^flagsMask))
	}
	if f.Has(FlagSecure) && !f.Has(FlagJIT) {
		return fmt.Errorf("%w: secure mode requires JIT", ErrInvalidFlags)
	}
	return nil
}

func (f Flags) String() string {
	if f == FlagDefault {
		return "default"
	}
	names := []struct {
		flag Flags
		name string
	}{
		{FlagLargePages, "large-pages"},
		{FlagHardAES, "hard-aes"},
		{FlagFullMem, "full-mem"},
		{FlagJIT, "jit"},
		{FlagSecure, "secure"},
		{FlagArgon2SSSE3, "argon2-ssse3"},
		{FlagArgon2AVX2, "argon2-avx2"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// RecommendedFlags returns the flags suited for the current CPU.
//
// Does not include:
// * FlagLargePages
// * FlagFullMem
// * FlagSecure
//
// The above flags need to be set manually, if required.
func RecommendedFlags() Flags {
	flags := FlagJIT
	if cpu.X86.HasAES || cpu.ARM64.HasAES {
		flags |= FlagHardAES
	}
	if cpu.X86.HasAVX2 {
		flags |= FlagArgon2AVX2
	}
	if cpu.X86.HasSSSE3 {
		flags |= FlagArgon2SSSE3
	}
	return flags
}
