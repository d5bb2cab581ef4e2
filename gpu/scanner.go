package gpu

import (
	"context"
	"fmt"

	"github.com/spacemeshos/post-engine/compute"
)

// ReferenceScanner reports software devices that execute KernelSource on the CPU.
// They produce the same results as hardware devices and are used when no
// accelerator driver is present.
type ReferenceScanner struct {
	Devices int
}

var _ compute.DeviceScanner = ReferenceScanner{}

func (s ReferenceScanner) Scan(ctx context.Context) ([]compute.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	providers := make([]compute.Provider, 0, s.Devices)
	for i := 0; i < s.Devices; i++ {
		providers = append(providers, compute.Provider{
			ID:         uint32(i),
			Model:      fmt.Sprintf("Reference Device %d", i),
			DeviceType: compute.ClassGPU,
		})
	}
	return providers, nil
}
