//go:build cuda

package metrics

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"idlepower/internal/logging"
)

// GPUCollector reports the busiest GPU's utilization via NVML
type GPUCollector struct {
	logger      *logging.Logger
	lib         nvmlLibrary
	devices     []gpuDevice
	initialized bool
}

// NewGPUCollector creates a new GPU utilization collector
func NewGPUCollector(logger *logging.Logger) *GPUCollector {
	return &GPUCollector{
		logger: logger,
		lib:    systemNVML{},
	}
}

func newGPUCollectorWithLibrary(lib nvmlLibrary, logger *logging.Logger) *GPUCollector {
	return &GPUCollector{
		logger: logger,
		lib:    lib,
	}
}

// Initialize initializes NVML and opens every device
func (g *GPUCollector) Initialize() error {
	ret := g.lib.Init()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("failed to initialize NVML: %v", nvml.ErrorString(ret))
	}

	count, ret := g.lib.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		g.shutdownQuietly()
		if ret != nvml.SUCCESS {
			return fmt.Errorf("failed to count GPU devices: %v", nvml.ErrorString(ret))
		}
		return fmt.Errorf("no GPU devices found")
	}

	g.devices = g.devices[:0]
	for i := 0; i < count; i++ {
		device, ret := g.lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			g.logger.Warn("gpu.collector.device.failed", "Failed to open GPU device", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}
		g.devices = append(g.devices, device)
	}

	if len(g.devices) == 0 {
		g.shutdownQuietly()
		return fmt.Errorf("failed to open any GPU device")
	}

	g.initialized = true
	g.logger.Info("gpu.collector.initialized", "GPU utilization collector initialized", map[string]interface{}{
		"devices": len(g.devices),
	})

	return nil
}

// Busy returns the highest utilization across devices as a 0..1 fraction
func (g *GPUCollector) Busy() (float64, bool, error) {
	if !g.initialized {
		return 0, false, fmt.Errorf("GPU collector not initialized")
	}

	busiest, ok := 0.0, false
	for _, device := range g.devices {
		utilization, ret := device.GetUtilizationRates()
		if ret != nvml.SUCCESS {
			g.logger.Warn("gpu.utilization.failed", "Failed to get GPU utilization", map[string]interface{}{
				"error": nvml.ErrorString(ret),
			})
			continue
		}
		if busy := float64(utilization.Gpu) / 100.0; !ok || busy > busiest {
			busiest = busy
		}
		ok = true
	}

	return busiest, ok, nil
}

func (g *GPUCollector) shutdownQuietly() {
	if shutdownRet := g.lib.Shutdown(); shutdownRet != nvml.SUCCESS {
		g.logger.Warn("gpu.collector.shutdown.failed", "NVML shutdown reported an error during init", map[string]interface{}{
			"error": nvml.ErrorString(shutdownRet),
		})
	}
}

// Shutdown shuts down the GPU collector
func (g *GPUCollector) Shutdown() {
	if g.initialized {
		g.shutdownQuietly()
		g.initialized = false
		g.logger.Info("gpu.collector.shutdown", "GPU utilization collector shut down", nil)
	}
}

// IsInitialized returns whether the collector is initialized
func (g *GPUCollector) IsInitialized() bool {
	return g.initialized
}
