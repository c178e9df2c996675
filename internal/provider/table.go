package provider

import (
	"codeberg.org/mutker/nvidiamon/internal/format"
	"codeberg.org/mutker/nvidiamon/internal/process"
)

type backend int

const (
	backendSmi backend = iota
	backendSettings
)

// field picks one value out of a multi-value record.
type field int

const (
	fieldWhole field = iota
	fieldUtilGPU
	fieldUtilMemCtrl
)

type source struct {
	backend backend
	key     string
	field   field
}

type metricRow struct {
	metric  MetricID
	format  format.Kind
	clean   bool
	sources map[Kind]source
}

var (
	smiName     = source{backendSmi, "name", fieldWhole}
	smiUtil     = source{backendSmi, "utilization.gpu", fieldWhole}
	smiMemUtil  = source{backendSmi, "utilization.memory", fieldWhole}
	smiTemp     = source{backendSmi, "temperature.gpu", fieldWhole}
	smiMemUsed  = source{backendSmi, "memory.used", fieldWhole}
	smiFanSpeed = source{backendSmi, "fan.speed", fieldWhole}
	smiPower    = source{backendSmi, "power.draw", fieldWhole}

	settingsUtil    = source{backendSettings, "GPUUtilization", fieldUtilGPU}
	settingsMemUtil = source{backendSettings, "GPUUtilization", fieldUtilMemCtrl}
	settingsTemp    = source{backendSettings, "GPUCoreTemp", fieldWhole}
	settingsMemUsed = source{backendSettings, "UsedDedicatedGPUMemory", fieldWhole}
)

// metricTable is the single source of truth for which metric each kind
// supports and where it comes from. Row order is display order.
var metricTable = []metricRow{
	{MetricName, format.Identity, false, map[Kind]source{
		CombinedSmiSettings: smiName,
		SmiOnly:             smiName,
		Optimus:             smiName,
	}},
	{MetricUtil, format.Percent, true, map[Kind]source{
		CombinedSmiSettings: settingsUtil,
		SettingsOnly:        settingsUtil,
		SmiOnly:             smiUtil,
		Optimus:             smiUtil,
	}},
	{MetricMemCtrlUtil, format.Percent, true, map[Kind]source{
		CombinedSmiSettings: settingsMemUtil,
		SettingsOnly:        settingsMemUtil,
		SmiOnly:             smiMemUtil,
		Optimus:             smiMemUtil,
	}},
	{MetricTemp, format.Temperature, true, map[Kind]source{
		CombinedSmiSettings: settingsTemp,
		SettingsOnly:        settingsTemp,
		SmiOnly:             smiTemp,
		Optimus:             smiTemp,
	}},
	{MetricMemoryUsage, format.Memory, true, map[Kind]source{
		CombinedSmiSettings: settingsMemUsed,
		SettingsOnly:        settingsMemUsed,
		SmiOnly:             smiMemUsed,
		Optimus:             smiMemUsed,
	}},
	{MetricFanSpeed, format.Percent, true, map[Kind]source{
		CombinedSmiSettings: smiFanSpeed,
		SmiOnly:             smiFanSpeed,
		Optimus:             smiFanSpeed,
	}},
	{MetricPowerUsage, format.Power, true, map[Kind]source{
		CombinedSmiSettings: smiPower,
		SmiOnly:             smiPower,
		Optimus:             smiPower,
	}},
}

var (
	smiQuery = process.Command{
		Program: "nvidia-smi",
		Head:    "--query-gpu=",
		Tail:    []string{"--format=csv,noheader", "-i"},
		Shape:   process.ShapeQuery,
	}
	optirunQuery = process.Command{
		Program: "optirun",
		Prefix:  []string{"nvidia-smi"},
		Head:    "--query-gpu=",
		Tail:    []string{"--format=csv,noheader", "-i"},
		Shape:   process.ShapeQuery,
	}
	settingsQuery = process.Command{
		Program: "nvidia-settings",
		Head:    "-q=[gpu:",
		Middle:  "]/",
		Tail:    []string{"-t"},
		Shape:   process.ShapeAttribute,
	}

	smiList = process.Command{
		Program: "nvidia-smi",
		Tail:    []string{"-L"},
		Shape:   process.ShapeList,
	}
	optirunList = process.Command{
		Program: "optirun",
		Prefix:  []string{"nvidia-smi"},
		Tail:    []string{"-L"},
		Shape:   process.ShapeList,
	}
	settingsList = process.Command{
		Program: "nvidia-settings",
		Tail:    []string{"-q", "GpuUUID", "-t"},
		Shape:   process.ShapeList,
	}
)

// commandFor returns the query command a kind uses for a backend.
func commandFor(kind Kind, b backend) process.Command {
	if b == backendSettings {
		return settingsQuery
	}
	if kind == Optimus {
		return optirunQuery
	}

	return smiQuery
}

// listCommandFor returns the UUID listing command and whether its output
// embeds the UUID in a longer line.
func listCommandFor(kind Kind) (process.Command, bool) {
	switch kind {
	case SmiOnly:
		return smiList, true
	case Optimus:
		return optirunList, true
	default:
		return settingsList, false
	}
}

func settingsAppFor(kind Kind) []string {
	if kind == Optimus {
		return []string{"optirun", "nvidia-settings", "-c", ":8"}
	}

	return []string{"nvidia-settings"}
}

func lookupSource(kind Kind, metric MetricID) (metricRow, source, bool) {
	for _, row := range metricTable {
		if row.metric != metric {
			continue
		}
		src, ok := row.sources[kind]

		return row, src, ok
	}

	return metricRow{}, source{}, false
}
