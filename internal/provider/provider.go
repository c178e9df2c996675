// Package provider exposes GPU telemetry collected from the NVIDIA command
// line tools behind one interface per backend kind.
package provider

import (
	"context"
	"fmt"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/format"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/parser"
	"codeberg.org/mutker/nvidiamon/internal/process"
)

// Placeholder is displayed in place of a metric that could not be read.
const Placeholder = "X"

// Settings is the part of the settings store a provider reads per call.
type Settings interface {
	TemperatureFormat() (int, error)
}

// Reading is one formatted metric of one GPU.
type Reading struct {
	Metric MetricID
	Value  string
	Err    error
}

// Provider holds the fixed property set of one kind. It is immutable after
// New and safe for concurrent use.
type Provider struct {
	kind        Kind
	properties  []Property
	byMetric    map[MetricID]int
	list        process.Processor
	embedsUUID  bool
	settingsApp []string
	runner      process.Runner
	settings    Settings
}

func New(kind Kind, runner process.Runner, settings Settings) (*Provider, error) {
	errFactory := errors.New()

	if _, err := ParseKind(int(kind)); err != nil {
		return nil, err
	}
	if runner == nil || settings == nil {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "provider needs a runner and settings")
	}

	p := &Provider{
		kind:        kind,
		byMetric:    make(map[MetricID]int),
		settingsApp: settingsAppFor(kind),
		runner:      runner,
		settings:    settings,
	}

	listCmd, embedsUUID := listCommandFor(kind)
	list, err := process.NewProcessor(listCmd, runner)
	if err != nil {
		return nil, err
	}
	p.list = list
	p.embedsUUID = embedsUUID

	for _, row := range metricTable {
		src, ok := row.sources[kind]
		if !ok {
			continue
		}

		processor, err := process.NewProcessor(commandFor(kind, src.backend), runner)
		if err != nil {
			return nil, err
		}
		formatter, err := format.New(row.format)
		if err != nil {
			return nil, err
		}

		p.byMetric[row.metric] = len(p.properties)
		p.properties = append(p.properties, Property{
			metric:    row.metric,
			key:       src.key,
			field:     src.field,
			clean:     row.clean,
			processor: processor,
			formatter: formatter,
		})
	}

	logger.Debug().
		Str("provider", kind.String()).
		Int("properties", len(p.properties)).
		Msg("Provider initialized")

	return p, nil
}

func (p *Provider) Kind() Kind {
	return p.kind
}

// Metrics lists the supported metrics in display order.
func (p *Provider) Metrics() []MetricID {
	metrics := make([]MetricID, len(p.properties))
	for i, prop := range p.properties {
		metrics[i] = prop.metric
	}

	return metrics
}

func (p *Provider) Properties() []Property {
	return append([]Property(nil), p.properties...)
}

// WireKey translates a metric to the key this kind passes to its tool.
func (p *Provider) WireKey(metric MetricID) (string, error) {
	_, src, ok := lookupSource(p.kind, metric)
	if !ok {
		return "", p.unknownMetric(metric)
	}

	return src.key, nil
}

// GPUUUIDs lists the GPUs visible to the backend.
func (p *Provider) GPUUUIDs(ctx context.Context) ([]string, error) {
	lines, err := p.list.Process(ctx, "", "")
	if err != nil {
		return nil, err
	}

	uuids := make([]string, 0, len(lines))
	for _, line := range lines {
		if !p.embedsUUID {
			uuids = append(uuids, line)
			continue
		}

		uuid, err := parser.ExtractUUID(line)
		if err != nil {
			return nil, err
		}
		uuids = append(uuids, uuid)
	}

	return uuids, nil
}

// GPUData returns one formatted metric for one GPU.
func (p *Provider) GPUData(ctx context.Context, uuid string, metric MetricID) (string, error) {
	key, err := p.WireKey(metric)
	if err != nil {
		return "", err
	}

	prop, ok := p.property(metric)
	if !ok || prop.key != key {
		return "", p.unknownMetric(metric)
	}

	params, err := p.params()
	if err != nil {
		return "", err
	}

	return prop.Parse(ctx, uuid, params)
}

// Snapshot reads every supported metric of one GPU. Each distinct external
// call runs once; metrics sharing it, like the two utilization values packed
// into nvidia-settings' GPUUtilization, are derived from the same result.
// Failed metrics carry Placeholder and their error. The returned error is
// only set when the settings could not be read.
func (p *Provider) Snapshot(ctx context.Context, uuid string) ([]Reading, error) {
	params, err := p.params()
	if err != nil {
		return nil, err
	}

	type result struct {
		lines []string
		err   error
	}
	results := make(map[string]result)

	readings := make([]Reading, 0, len(p.properties))
	for _, prop := range p.properties {
		id := prop.queryID()
		res, ok := results[id]
		if !ok {
			res.lines, res.err = prop.processor.Process(ctx, uuid, prop.key)
			results[id] = res
		}

		reading := Reading{Metric: prop.metric}
		if res.err != nil {
			reading.Err = res.err
		} else {
			reading.Value, reading.Err = prop.render(res.lines, params)
		}
		if reading.Err != nil {
			reading.Value = Placeholder
		}

		readings = append(readings, reading)
	}

	return readings, nil
}

// OpenSettingsApp launches the vendor settings GUI without waiting for it.
func (p *Provider) OpenSettingsApp(ctx context.Context) error {
	return p.runner.Start(ctx, p.settingsApp)
}

func (p *Provider) property(metric MetricID) (Property, bool) {
	i, ok := p.byMetric[metric]
	if !ok {
		return Property{}, false
	}

	return p.properties[i], true
}

func (p *Provider) params() (format.Params, error) {
	v, err := p.settings.TemperatureFormat()
	if err != nil {
		return format.Params{}, err
	}

	unit, err := format.ParseTemperatureUnit(v)
	if err != nil {
		return format.Params{}, err
	}

	return format.Params{TemperatureUnit: unit}, nil
}

func (p *Provider) unknownMetric(metric MetricID) error {
	return errors.New().WithData(errors.ErrUnknownMetric, fmt.Sprintf("%s (%s)", metric, p.kind))
}
