// Package compute enumerates the execution providers that can derive labels
// and search for proofs.
package compute

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// CPUProviderID is the reserved id of the CPU provider. It is always available.
const CPUProviderID = math.MaxUint32

var (
	ErrInvalidProviderID = errors.New("invalid provider ID")
	ErrFetchProviders    = errors.New("failed to fetch providers")
)

// DeviceClass is an enum for the type of device (CPU or GPU).
type DeviceClass int

const (
	ClassUnspecified DeviceClass = 0
	ClassCPU         DeviceClass = 1
	ClassGPU         DeviceClass = 2
)

func (c DeviceClass) String() string {
	switch c {
	case ClassCPU:
		return "CPU"
	case ClassGPU:
		return "GPU"
	default:
		return "Unspecified"
	}
}

// Provider is a named compute execution context.
type Provider struct {
	ID         uint32
	Model      string
	DeviceType DeviceClass
}

// DeviceScanner discovers accelerator devices. Every provider it returns must be a
// GPU with an id other than CPUProviderID.
type DeviceScanner interface {
	Scan(ctx context.Context) ([]Provider, error)
}

type option struct {
	scanner DeviceScanner
	logger  *zap.Logger
}

type OptionFunc func(*option) error

// WithScanner sets the device scanner. Without one only the CPU provider is listed.
func WithScanner(scanner DeviceScanner) OptionFunc {
	return func(opts *option) error {
		opts.scanner = scanner
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opts *option) error {
		opts.logger = logger
		return nil
	}
}

// Enumerator lists the available providers: the CPU first, then every scanned device.
type Enumerator struct {
	scanner DeviceScanner
	logger  *zap.Logger
}

func NewEnumerator(opts ...OptionFunc) (*Enumerator, error) {
	options := &option{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return &Enumerator{
		scanner: options.scanner,
		logger:  options.logger,
	}, nil
}

func cpuProvider() Provider {
	return Provider{
		ID:         CPUProviderID,
		Model:      "CPU",
		DeviceType: ClassCPU,
	}
}

// Providers returns every available provider.
func (e *Enumerator) Providers(ctx context.Context) ([]Provider, error) {
	providers := []Provider{cpuProvider()}
	if e.scanner == nil {
		return providers, nil
	}

	devices, err := e.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchProviders, err)
	}
	for _, d := range devices {
		if d.ID == CPUProviderID || d.DeviceType != ClassGPU {
			return nil, fmt.Errorf("%w: scanner returned invalid device %d (%s)", ErrFetchProviders, d.ID, d.DeviceType)
		}
		providers = append(providers, d)
	}
	e.logger.Debug("fetched providers", zap.Int("count", len(providers)))
	return providers, nil
}

// GetProviders copies up to len(out) providers into out and returns how many were copied.
func (e *Enumerator) GetProviders(ctx context.Context, out []Provider) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	providers, err := e.Providers(ctx)
	if err != nil {
		return 0, err
	}
	return copy(out, providers), nil
}

// Lookup returns the provider with the given id.
func (e *Enumerator) Lookup(ctx context.Context, id uint32) (Provider, error) {
	if id == CPUProviderID {
		return cpuProvider(), nil
	}
	providers, err := e.Providers(ctx)
	if err != nil {
		return Provider{}, err
	}
	for _, p := range providers {
		if p.ID == id {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%w: %d", ErrInvalidProviderID, id)
}

// Best returns the first GPU provider, or the CPU provider if there is none.
func (e *Enumerator) Best(ctx context.Context) (Provider, error) {
	providers, err := e.Providers(ctx)
	if err != nil {
		return Provider{}, err
	}
	for _, p := range providers {
		if p.DeviceType == ClassGPU {
			return p, nil
		}
	}
	return providers[0], nil
}
