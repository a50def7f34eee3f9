//go:build cuda

package metrics

import "github.com/NVIDIA/go-nvml/pkg/nvml"

type mockNVML struct {
	InitReturn        nvml.Return
	ShutdownReturn    nvml.Return
	DeviceCountReturn nvml.Return
	HandleReturn      nvml.Return
	Devices           []mockDevice
	shutdowns         int
}

type mockDevice struct {
	Name              string
	GPUUtil           uint32
	UtilizationReturn nvml.Return
}

func newMockNVML(devices ...mockDevice) *mockNVML {
	return &mockNVML{
		InitReturn:        nvml.SUCCESS,
		ShutdownReturn:    nvml.SUCCESS,
		DeviceCountReturn: nvml.SUCCESS,
		HandleReturn:      nvml.SUCCESS,
		Devices:           devices,
	}
}

func (m *mockNVML) Init() nvml.Return { return m.InitReturn }

func (m *mockNVML) Shutdown() nvml.Return {
	m.shutdowns++
	return m.ShutdownReturn
}

func (m *mockNVML) DeviceGetCount() (int, nvml.Return) {
	return len(m.Devices), m.DeviceCountReturn
}

func (m *mockNVML) DeviceGetHandleByIndex(index int) (gpuDevice, nvml.Return) {
	if index < 0 || index >= len(m.Devices) {
		return nil, nvml.ERROR_INVALID_ARGUMENT
	}
	return mockDeviceImpl{device: &m.Devices[index]}, m.HandleReturn
}

type mockDeviceImpl struct {
	device *mockDevice
}

func (m mockDeviceImpl) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	return nvml.Utilization{Gpu: m.device.GPUUtil}, m.device.UtilizationReturn
}
