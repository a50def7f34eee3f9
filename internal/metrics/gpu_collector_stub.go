//go:build !cuda

package metrics

import (
	"errors"

	"idlepower/internal/logging"
)

// ErrGPUUnsupported is returned by every GPU call in builds without the
// cuda tag
var ErrGPUUnsupported = errors.New("gpu utilization unavailable: rebuild with -tags cuda")

// GPUCollector stands in for the NVML collector; it never contributes a
// sample, so utilization falls back to CPU only.
type GPUCollector struct {
	logger *logging.Logger
}

// NewGPUCollector returns the stand-in collector
func NewGPUCollector(logger *logging.Logger) *GPUCollector {
	return &GPUCollector{logger: logger}
}

// Initialize always fails with ErrGPUUnsupported
func (g *GPUCollector) Initialize() error {
	g.logger.Debug("gpu.collector.unsupported", "GPU support not compiled in", nil)
	return ErrGPUUnsupported
}

// Busy always fails with ErrGPUUnsupported
func (g *GPUCollector) Busy() (float64, bool, error) {
	return 0, false, ErrGPUUnsupported
}

// Shutdown does nothing
func (g *GPUCollector) Shutdown() {}

// IsInitialized is always false
func (g *GPUCollector) IsInitialized() bool { return false }
