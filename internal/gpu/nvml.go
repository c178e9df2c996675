package gpu

import (
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlController abstracts NVML operations for testing
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDeviceCount() (int, error)
	GetDevice(index int) (Device, error)
	GetDriverVersion() (string, error)
}

type nvmlWrapper struct {
	initialized bool
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := nvml.Init()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) GetDeviceCount() (int, error) {
	errFactory := errors.New()
	if !w.initialized {
		return 0, errFactory.New(ErrNotInitialized)
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}

	return count, nil
}

func (w *nvmlWrapper) GetDevice(index int) (Device, error) {
	errFactory := errors.New()
	if !w.initialized {
		return Device{}, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return Device{}, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	uuid, ret := device.GetUUID()
	if !IsNVMLSuccess(ret) {
		return Device{}, errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	name, ret := device.GetName()
	if !IsNVMLSuccess(ret) {
		return Device{}, errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	return Device{Index: index, Name: name, UUID: uuid}, nil
}

func (w *nvmlWrapper) GetDriverVersion() (string, error) {
	errFactory := errors.New()
	if !w.initialized {
		return "", errFactory.New(ErrNotInitialized)
	}

	version, ret := nvml.SystemGetDriverVersion()
	if !IsNVMLSuccess(ret) {
		return "", errFactory.Wrap(ErrDriverVersion, newNVMLError(ret))
	}

	return version, nil
}
