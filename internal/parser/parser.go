// Package parser splits raw tool output into records and decodes the few
// per-dialect micro formats the NVIDIA tools emit.
package parser

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

const (
	uuidOpen  = "(UUID: "
	uuidClose = ")"
)

// Lines splits raw stdout into trimmed, newline-delimited records. Blank
// lines are dropped.
func Lines(stdout []byte) []string {
	text := strings.ReplaceAll(string(stdout), "\r\n", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return lines
}

// ExtractUUID returns the identifier embedded in an `nvidia-smi -L` line such
// as "GPU 0: NVIDIA RTX X (UUID: GPU-abc123)".
func ExtractUUID(line string) (string, error) {
	errFactory := errors.New()

	start := strings.Index(line, uuidOpen)
	if start < 0 {
		return "", errFactory.WithData(errors.ErrMalformedUUIDOutput, line)
	}
	rest := line[start+len(uuidOpen):]

	end := strings.Index(rest, uuidClose)
	if end <= 0 {
		return "", errFactory.WithData(errors.ErrMalformedUUIDOutput, line)
	}

	return rest[:end], nil
}

// Utilization is the decoded form of the nvidia-settings GPUUtilization
// attribute, which packs several engine loads into one string.
type Utilization struct {
	GPUPercent           string
	MemControllerPercent string
}

// ParseUtilization decodes "graphics=12, memory=4, video=0, PCIe=0".
func ParseUtilization(raw string) (Utilization, error) {
	errFactory := errors.New()

	var util Utilization
	var haveGPU, haveMem bool
	for _, field := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return Utilization{}, errFactory.WithData(errors.ErrParse, raw)
		}

		switch strings.TrimSpace(key) {
		case "graphics":
			util.GPUPercent, haveGPU = value, true
		case "memory":
			util.MemControllerPercent, haveMem = value, true
		}
	}

	if !haveGPU || !haveMem {
		return Utilization{}, errFactory.WithData(errors.ErrParse, raw)
	}

	return util, nil
}
