package provider

import (
	"context"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/format"
	"codeberg.org/mutker/nvidiamon/internal/parser"
	"codeberg.org/mutker/nvidiamon/internal/process"
)

// Property binds one metric to the processor that fetches it and the
// formatter that renders it.
type Property struct {
	metric    MetricID
	key       string
	field     field
	clean     bool
	processor process.Processor
	formatter format.Formatter
}

func (p Property) Metric() MetricID {
	return p.metric
}

// Key is the wire key passed to the external tool.
func (p Property) Key() string {
	return p.key
}

func (p Property) Formatter() format.Formatter {
	return p.formatter
}

// Parse fetches and formats the metric for one GPU.
func (p Property) Parse(ctx context.Context, target string, params format.Params) (string, error) {
	lines, err := p.processor.Process(ctx, target, p.key)
	if err != nil {
		return "", err
	}

	return p.render(lines, params)
}

// render formats the first record of an already fetched result.
func (p Property) render(lines []string, params format.Params) (string, error) {
	errFactory := errors.New()

	if len(lines) == 0 {
		return "", errFactory.WithData(errors.ErrNoData, string(p.metric))
	}

	raw, err := p.extract(lines[0])
	if err != nil {
		return "", err
	}

	return p.formatter.Format(raw, p.clean, params)
}

func (p Property) extract(record string) (string, error) {
	switch p.field {
	case fieldUtilGPU, fieldUtilMemCtrl:
		util, err := parser.ParseUtilization(record)
		if err != nil {
			return "", err
		}
		if p.field == fieldUtilGPU {
			return util.GPUPercent, nil
		}

		return util.MemControllerPercent, nil
	default:
		return record, nil
	}
}

// queryID identifies the external call behind the property; properties with
// the same queryID can share one result.
func (p Property) queryID() string {
	return p.processor.Command().String() + "|" + p.key
}
