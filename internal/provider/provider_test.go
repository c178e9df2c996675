package provider

import (
	"context"
	"fmt"
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "GPU-abc123"

type fixedSettings struct {
	tempFormat int
	err        error
}

func (s fixedSettings) TemperatureFormat() (int, error) {
	return s.tempFormat, s.err
}

func smiCmd(key string) string {
	return "nvidia-smi --query-gpu=" + key + " --format=csv,noheader -i " + testUUID
}

func settingsCmd(key string) string {
	return "nvidia-settings -q=[gpu:" + testUUID + "]/" + key + " -t"
}

func newTestProvider(t *testing.T, kind Kind, runner process.Runner, tempFormat int) *Provider {
	t.Helper()
	p, err := New(kind, runner, fixedSettings{tempFormat: tempFormat})
	require.NoError(t, err)

	return p
}

func TestMetricTableComplete(t *testing.T) {
	for _, kind := range Kinds() {
		p := newTestProvider(t, kind, process.NewStubRunner(), 0)

		supported := map[MetricID]bool{}
		for _, metric := range p.Metrics() {
			supported[metric] = true

			key, err := p.WireKey(metric)
			require.NoError(t, err, "%s %s", kind, metric)

			prop, ok := p.property(metric)
			require.True(t, ok, "%s %s", kind, metric)
			assert.Equal(t, key, prop.Key(), "%s %s", kind, metric)
		}

		for _, row := range metricTable {
			_, claimed := row.sources[kind]
			assert.Equal(t, claimed, supported[row.metric], "%s %s", kind, row.metric)
		}
	}
}

func TestOnePropertyPerMetric(t *testing.T) {
	for _, kind := range Kinds() {
		seen := map[MetricID]bool{}
		for _, prop := range newTestProvider(t, kind, process.NewStubRunner(), 0).Properties() {
			assert.False(t, seen[prop.Metric()], "%s %s", kind, prop.Metric())
			seen[prop.Metric()] = true
		}
	}
}

func TestGPUDataTemperature(t *testing.T) {
	runner := process.NewStubRunner().Stdout(smiCmd("temperature.gpu"), "47\n")

	got, err := newTestProvider(t, SmiOnly, runner, 0).GPUData(context.Background(), testUUID, MetricTemp)
	require.NoError(t, err)
	assert.Equal(t, "47°C", got)

	got, err = newTestProvider(t, SmiOnly, runner, 1).GPUData(context.Background(), testUUID, MetricTemp)
	require.NoError(t, err)
	assert.Equal(t, "116°F", got)
}

func TestGPUDataFormats(t *testing.T) {
	runner := process.NewStubRunner().
		Stdout(smiCmd("name"), "NVIDIA GeForce RTX 3080\n").
		Stdout(smiCmd("utilization.gpu"), "23 %\n").
		Stdout(smiCmd("memory.used"), "1024 MiB\n").
		Stdout(smiCmd("power.draw"), "87.31 W\n").
		Stdout(smiCmd("fan.speed"), "40 %\n")
	p := newTestProvider(t, SmiOnly, runner, 0)

	want := map[MetricID]string{
		MetricName:        "NVIDIA GeForce RTX 3080",
		MetricUtil:        "23 %",
		MetricMemoryUsage: "1024 MiB",
		MetricPowerUsage:  "87 W",
		MetricFanSpeed:    "40 %",
	}
	for metric, expected := range want {
		got, err := p.GPUData(context.Background(), testUUID, metric)
		require.NoError(t, err, metric)
		assert.Equal(t, expected, got, metric)
	}
}

func TestGPUDataCombinedUtilization(t *testing.T) {
	runner := process.NewStubRunner().
		Stdout(settingsCmd("GPUUtilization"), "graphics=12, memory=4, video=0, PCIe=0\n")
	p := newTestProvider(t, CombinedSmiSettings, runner, 0)

	util, err := p.GPUData(context.Background(), testUUID, MetricUtil)
	require.NoError(t, err)
	assert.Equal(t, "12 %", util)

	memUtil, err := p.GPUData(context.Background(), testUUID, MetricMemCtrlUtil)
	require.NoError(t, err)
	assert.Equal(t, "4 %", memUtil)
}

func TestGPUDataUnknownMetric(t *testing.T) {
	runner := process.NewStubRunner()
	p := newTestProvider(t, SettingsOnly, runner, 0)

	_, err := p.GPUData(context.Background(), testUUID, MetricFanSpeed)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnknownMetric))

	_, err = p.GPUData(context.Background(), testUUID, MetricID("bogus"))
	assert.True(t, errors.HasCode(err, errors.ErrUnknownMetric))
	assert.Empty(t, runner.Calls())
}

func TestGPUDataNoData(t *testing.T) {
	p := newTestProvider(t, SmiOnly, process.NewStubRunner(), 0)

	_, err := p.GPUData(context.Background(), testUUID, MetricTemp)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNoData))
}

func TestGPUDataSettingsMissing(t *testing.T) {
	missing := errors.New().WithData(errors.ErrMissingSetting, "tempformat")
	p, err := New(SmiOnly, process.NewStubRunner(), fixedSettings{err: missing})
	require.NoError(t, err)

	_, err = p.GPUData(context.Background(), testUUID, MetricTemp)
	assert.True(t, errors.HasCode(err, errors.ErrMissingSetting))

	_, err = p.Snapshot(context.Background(), testUUID)
	assert.True(t, errors.HasCode(err, errors.ErrMissingSetting))
}

func TestGPUDataOptimusWrapsSmi(t *testing.T) {
	runner := process.NewStubRunner().
		Stdout("optirun nvidia-smi --query-gpu=temperature.gpu --format=csv,noheader -i "+testUUID, "60\n")

	got, err := newTestProvider(t, Optimus, runner, 0).GPUData(context.Background(), testUUID, MetricTemp)
	require.NoError(t, err)
	assert.Equal(t, "60°C", got)
}

func TestSnapshotSharesCombinedQuery(t *testing.T) {
	runner := process.NewStubRunner().
		Stdout(smiCmd("name"), "NVIDIA GeForce GTX 1080\n").
		Stdout(settingsCmd("GPUUtilization"), "graphics=55, memory=21, video=0, PCIe=1\n").
		Stdout(settingsCmd("GPUCoreTemp"), "64\n").
		Stdout(settingsCmd("UsedDedicatedGPUMemory"), "2048\n").
		Stdout(smiCmd("fan.speed"), "33 %\n").
		Stdout(smiCmd("power.draw"), "120.50 W\n")
	p := newTestProvider(t, CombinedSmiSettings, runner, 0)

	readings, err := p.Snapshot(context.Background(), testUUID)
	require.NoError(t, err)

	got := map[MetricID]string{}
	for _, r := range readings {
		require.NoError(t, r.Err, r.Metric)
		got[r.Metric] = r.Value
	}
	assert.Equal(t, map[MetricID]string{
		MetricName:        "NVIDIA GeForce GTX 1080",
		MetricUtil:        "55 %",
		MetricMemCtrlUtil: "21 %",
		MetricTemp:        "64°C",
		MetricMemoryUsage: "2048 MiB",
		MetricFanSpeed:    "33 %",
		MetricPowerUsage:  "120 W",
	}, got)
	assert.Len(t, runner.Calls(), len(readings)-1)
	assert.Equal(t, p.Metrics(), metricsOf(readings))
}

func TestSnapshotIsolatesFailures(t *testing.T) {
	spawn := errors.New().Wrap(errors.ErrProcessSpawn, fmt.Errorf("permission denied"))
	runner := process.NewStubRunner().
		Stdout(smiCmd("name"), "NVIDIA GeForce RTX 3080\n").
		Stdout(smiCmd("temperature.gpu"), "[N/A]\n").
		Fail(smiCmd("power.draw"), spawn).
		Stderr(smiCmd("fan.speed"), "Unable to determine the device handle")

	readings, err := newTestProvider(t, SmiOnly, runner, 0).Snapshot(context.Background(), testUUID)
	require.NoError(t, err)

	byMetric := map[MetricID]Reading{}
	for _, r := range readings {
		byMetric[r.Metric] = r
	}

	assert.Equal(t, "NVIDIA GeForce RTX 3080", byMetric[MetricName].Value)
	assert.NoError(t, byMetric[MetricName].Err)

	assert.Equal(t, Placeholder, byMetric[MetricTemp].Value)
	assert.True(t, errors.HasCode(byMetric[MetricTemp].Err, errors.ErrParse))

	assert.Equal(t, Placeholder, byMetric[MetricPowerUsage].Value)
	assert.True(t, errors.HasCode(byMetric[MetricPowerUsage].Err, errors.ErrProcessSpawn))

	assert.True(t, errors.HasCode(byMetric[MetricFanSpeed].Err, errors.ErrProcessOutput))
	assert.True(t, errors.HasCode(byMetric[MetricUtil].Err, errors.ErrNoData))
}

func TestGPUUUIDs(t *testing.T) {
	smi := process.NewStubRunner().Stdout("nvidia-smi -L",
		"GPU 0: NVIDIA RTX X (UUID: GPU-abc123)\nGPU 1: NVIDIA RTX Y (UUID: GPU-def456)\n")
	uuids, err := newTestProvider(t, SmiOnly, smi, 0).GPUUUIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GPU-abc123", "GPU-def456"}, uuids)

	optimus := process.NewStubRunner().Stdout("optirun nvidia-smi -L", "GPU 0: GeForce GT 750M (UUID: GPU-0f0f)\n")
	uuids, err = newTestProvider(t, Optimus, optimus, 0).GPUUUIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GPU-0f0f"}, uuids)

	settings := process.NewStubRunner().Stdout("nvidia-settings -q GpuUUID -t", "GPU-abc123\nGPU-def456\n")
	for _, kind := range []Kind{CombinedSmiSettings, SettingsOnly} {
		uuids, err = newTestProvider(t, kind, settings, 0).GPUUUIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"GPU-abc123", "GPU-def456"}, uuids)
	}
}

func TestGPUUUIDsMalformed(t *testing.T) {
	runner := process.NewStubRunner().Stdout("nvidia-smi -L", "GPU 0: NVIDIA RTX X (UUID: GPU-abc123)\nGPU 1: broken\n")

	_, err := newTestProvider(t, SmiOnly, runner, 0).GPUUUIDs(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMalformedUUIDOutput))
}

func TestGPUUUIDsEmpty(t *testing.T) {
	uuids, err := newTestProvider(t, SmiOnly, process.NewStubRunner(), 0).GPUUUIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, uuids)
}

func TestOpenSettingsApp(t *testing.T) {
	runner := process.NewStubRunner()

	require.NoError(t, newTestProvider(t, SmiOnly, runner, 0).OpenSettingsApp(context.Background()))
	require.NoError(t, newTestProvider(t, Optimus, runner, 0).OpenSettingsApp(context.Background()))

	assert.Equal(t, [][]string{
		{"nvidia-settings"},
		{"optirun", "nvidia-settings", "-c", ":8"},
	}, runner.Started())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Kind(7), process.NewStubRunner(), fixedSettings{})
	assert.True(t, errors.HasCode(err, errors.ErrUnknownProvider))

	_, err = New(SmiOnly, nil, fixedSettings{})
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestParseKind(t *testing.T) {
	for i, want := range Kinds() {
		got, err := ParseKind(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind(4)
	assert.True(t, errors.HasCode(err, errors.ErrUnknownProvider))
}

func metricsOf(readings []Reading) []MetricID {
	out := make([]MetricID, len(readings))
	for i, r := range readings {
		out[i] = r.Metric
	}

	return out
}
