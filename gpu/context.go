package gpu

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/shared"
)

// MaxResults bounds the number of results a single Prove call can hold.
const MaxResults = 1024 * 1024

// Status is the outcome of a Prove call.
type Status int

const (
	StatusOk Status = iota
	StatusInvalidArgument
	StatusClosed
	StatusResultsOverflow
)

var (
	ErrInvalidContext  = errors.New("invalid gpu context parameters")
	ErrKernelEntry     = errors.New("kernel source has no `" + KernelEntry + "` entry")
	ErrContextClosed   = errors.New("gpu context is closed")
	ErrResultsOverflow = errors.New("too many results for a single batch")
	ErrNoResult        = errors.New("no result at index")
)

func (s Status) Err() error {
	switch s {
	case StatusOk:
		return nil
	case StatusInvalidArgument:
		return shared.ErrInvalidArgument
	case StatusClosed:
		return ErrContextClosed
	case StatusResultsOverflow:
		return ErrResultsOverflow
	default:
		return fmt.Errorf("unknown gpu status %d", int(s))
	}
}

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusClosed:
		return "closed"
	case StatusResultsOverflow:
		return "results overflow"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Context runs the cipher scheme over label batches for a fixed nonce window.
// Prove calls are serialized per device, results of a call stay available
// until the next call.
type Context struct {
	device     uint32
	startNonce uint32
	inputSize  int
	msb        uint8
	lsb        uint64

	groupCiphers []cipher.Block
	lazyCiphers  []cipher.Block

	mtx     sync.Mutex
	results []Result
	closed  bool
}

// NewContext prepares a context on device for the nonces [startNonce, startNonce+nonces).
// cipherKeys holds a key per nonce group and lazyKeys a key per nonce. inputSize
// is the largest batch in bytes Prove accepts. src is the kernel program and must
// define the KernelEntry function.
func NewContext(device, startNonce, nonces uint32, cipherKeys, lazyKeys []byte, lsb uint64, msb uint8, inputSize int, src []byte) (*Context, error) {
	if startNonce%shared.NoncesPerGroup != 0 || nonces == 0 || nonces%shared.NoncesPerGroup != 0 {
		return nil, fmt.Errorf("%w: nonce window [%d, +%d) is not aligned to %d", ErrInvalidContext, startNonce, nonces, shared.NoncesPerGroup)
	}
	if inputSize <= 0 || inputSize%shared.LabelLength != 0 {
		return nil, fmt.Errorf("%w: input size %d", ErrInvalidContext, inputSize)
	}
	if lsb > 0x00ff_ffff_ffff_ffff {
		return nil, fmt.Errorf("%w: lsb %#x exceeds 56 bits", ErrInvalidContext, lsb)
	}
	if !bytes.Contains(src, []byte(KernelEntry)) {
		return nil, ErrKernelEntry
	}

	groupCiphers, err := newCiphers(cipherKeys)
	if err != nil {
		return nil, err
	}
	if len(groupCiphers) != int(nonces/shared.NoncesPerGroup) {
		return nil, fmt.Errorf("%w: expected %d group keys, given %d", ErrInvalidKeys, nonces/shared.NoncesPerGroup, len(groupCiphers))
	}
	lazyCiphers, err := newCiphers(lazyKeys)
	if err != nil {
		return nil, err
	}
	if len(lazyCiphers) != int(nonces) {
		return nil, fmt.Errorf("%w: expected %d lazy keys, given %d", ErrInvalidKeys, nonces, len(lazyCiphers))
	}

	compute.Log(compute.LevelInfo, "gpu context created",
		zap.Uint32("device", device),
		zap.Uint32("start_nonce", startNonce),
		zap.Uint32("nonces", nonces),
	)
	return &Context{
		device:       device,
		startNonce:   startNonce,
		inputSize:    inputSize,
		msb:          msb,
		lsb:          lsb,
		groupCiphers: groupCiphers,
		lazyCiphers:  lazyCiphers,
	}, nil
}

// Prove scans a batch of labels, the first of which has index baseIndex, and
// records every qualifying (index, nonce) pair. The pairs are read back with
// ResultCount and Result.
func (c *Context) Prove(baseIndex uint64, data []byte) Status {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.closed {
		return StatusClosed
	}
	if len(data) == 0 || len(data) > c.inputSize || len(data)%shared.LabelLength != 0 {
		compute.Log(compute.LevelError, "invalid gpu batch", zap.Int("size", len(data)), zap.Int("input_size", c.inputSize))
		return StatusInvalidArgument
	}

	lock := compute.DeviceLock(c.device)
	lock.Lock()
	defer lock.Unlock()

	c.results = c.results[:0]
	firstGroup := shared.NonceGroup(c.startNonce)
	var out [shared.LabelLength]byte
	for i := 0; i < len(data); i += shared.LabelLength {
		label := data[i : i+shared.LabelLength]
		index := baseIndex + uint64(i/shared.LabelLength)
		for g, block := range c.groupCiphers {
			block.Encrypt(out[:], label)
			for offset, b := range out {
				if b > c.msb {
					continue
				}
				nonce := (firstGroup+uint32(g))*shared.NoncesPerGroup + uint32(offset)
				if b == c.msb && !lazyBelow(c.lazyCiphers[nonce-c.startNonce], label, c.lsb) {
					continue
				}
				if len(c.results) == MaxResults {
					compute.Log(compute.LevelError, "gpu results overflow", zap.Uint64("base_index", baseIndex))
					return StatusResultsOverflow
				}
				c.results = append(c.results, Result{Index: index, Nonce: nonce})
			}
		}
	}
	return StatusOk
}

// ResultCount returns the number of results of the last Prove call.
func (c *Context) ResultCount() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.results)
}

// Result returns the i-th result of the last Prove call.
func (c *Context) Result(i int) (Result, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.closed {
		return Result{}, ErrContextClosed
	}
	if i < 0 || i >= len(c.results) {
		return Result{}, fmt.Errorf("%w: %d", ErrNoResult, i)
	}
	return c.results[i], nil
}

func (c *Context) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.results = nil
	c.groupCiphers = nil
	c.lazyCiphers = nil
	compute.Log(compute.LevelInfo, "gpu context destroyed", zap.Uint32("device", c.device))
	return nil
}
