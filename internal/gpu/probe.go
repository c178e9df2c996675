// Package gpu probes the NVIDIA driver through NVML. It is used to check
// that the GPUs reported by the command-line tools match what the driver
// sees.
package gpu

import (
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

type Device struct {
	Index int
	Name  string
	UUID  string
}

// Inventory is what NVML reports about the installed GPUs.
type Inventory struct {
	DriverVersion string
	Devices       []Device
}

// Probe initializes NVML, reads the device inventory and shuts NVML down.
func Probe(log logger.Logger) (Inventory, error) {
	return probe(&nvmlWrapper{}, log)
}

func probe(ctrl nvmlController, log logger.Logger) (inv Inventory, err error) {
	if err := ctrl.Initialize(); err != nil {
		return Inventory{}, err
	}
	defer func() {
		if shutdownErr := ctrl.Shutdown(); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	if inv.DriverVersion, err = ctrl.GetDriverVersion(); err != nil {
		return Inventory{}, err
	}

	count, err := ctrl.GetDeviceCount()
	if err != nil {
		return Inventory{}, err
	}
	log.Debug().Int("count", count).Msg("Detected GPUs")

	for i := 0; i < count; i++ {
		device, err := ctrl.GetDevice(i)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping GPU")
			continue
		}
		inv.Devices = append(inv.Devices, device)
	}

	return inv, nil
}

// Missing returns the inventory UUIDs absent from listed.
func (inv Inventory) Missing(listed []string) []string {
	seen := make(map[string]bool, len(listed))
	for _, uuid := range listed {
		seen[uuid] = true
	}

	var missing []string
	for _, d := range inv.Devices {
		if !seen[d.UUID] {
			missing = append(missing, d.UUID)
		}
	}

	return missing
}
