//go:build cuda

package metrics

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// nvmlLibrary is the slice of NVML the GPU collector calls
type nvmlLibrary interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (gpuDevice, nvml.Return)
}

type gpuDevice interface {
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
}

// systemNVML binds nvmlLibrary to the real driver library
type systemNVML struct{}

func (systemNVML) Init() nvml.Return { return nvml.Init() }

func (systemNVML) Shutdown() nvml.Return { return nvml.Shutdown() }

func (systemNVML) DeviceGetCount() (int, nvml.Return) { return nvml.DeviceGetCount() }

func (systemNVML) DeviceGetHandleByIndex(index int) (gpuDevice, nvml.Return) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, ret
	}
	return device, ret
}
