package provider

import "codeberg.org/mutker/nvidiamon/internal/errors"

// Kind selects the backend tool set. The numbering matches the provider
// setting.
type Kind int

const (
	CombinedSmiSettings Kind = iota
	SettingsOnly
	SmiOnly
	Optimus
)

// Kinds lists every provider kind in setting order.
func Kinds() []Kind {
	return []Kind{CombinedSmiSettings, SettingsOnly, SmiOnly, Optimus}
}

// ParseKind maps the provider setting to a Kind.
func ParseKind(v int) (Kind, error) {
	k := Kind(v)
	switch k {
	case CombinedSmiSettings, SettingsOnly, SmiOnly, Optimus:
		return k, nil
	default:
		return 0, errors.New().WithData(errors.ErrUnknownProvider, v)
	}
}

func (k Kind) String() string {
	switch k {
	case CombinedSmiSettings:
		return "nvidia-smi+nvidia-settings"
	case SettingsOnly:
		return "nvidia-settings"
	case SmiOnly:
		return "nvidia-smi"
	case Optimus:
		return "optimus"
	default:
		return "unknown"
	}
}

// MetricID is the provider independent metric name used by frontends.
type MetricID string

const (
	MetricName        MetricID = "name"
	MetricUtil        MetricID = "util"
	MetricMemCtrlUtil MetricID = "mem_ctrl_util"
	MetricTemp        MetricID = "temp"
	MetricMemoryUsage MetricID = "memory_usage"
	MetricFanSpeed    MetricID = "fan_speed"
	MetricPowerUsage  MetricID = "power_usage"
)
