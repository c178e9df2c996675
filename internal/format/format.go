// Package format turns raw tool values into display strings.
package format

import (
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

type TemperatureUnit int

const (
	Celsius TemperatureUnit = iota
	Fahrenheit
)

// ParseTemperatureUnit maps the tempformat setting to a unit.
func ParseTemperatureUnit(v int) (TemperatureUnit, error) {
	switch TemperatureUnit(v) {
	case Celsius, Fahrenheit:
		return TemperatureUnit(v), nil
	default:
		return Celsius, errors.New().WithData(errors.ErrInvalidSetting, v)
	}
}

// Params carries per-call formatting options.
type Params struct {
	TemperatureUnit TemperatureUnit
}

type Kind int

const (
	Identity Kind = iota
	Percent
	Memory
	Power
	Temperature
)

func (k Kind) String() string {
	switch k {
	case Identity:
		return "identity"
	case Percent:
		return "percent"
	case Memory:
		return "memory"
	case Power:
		return "power"
	case Temperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// Transform renders an already cleaned value.
type Transform func(text string, p Params) (string, error)

var transforms = map[Kind]Transform{
	Identity:    identity,
	Percent:     suffix(" %"),
	Memory:      suffix(" MiB"),
	Power:       power,
	Temperature: temperature,
}

// Formatter is a value type; the zero value formats as Identity.
type Formatter struct {
	kind Kind
}

func New(kind Kind) (Formatter, error) {
	if _, ok := transforms[kind]; !ok {
		return Formatter{}, errors.New().WithData(errors.ErrInvalidArgument, kind.String())
	}

	return Formatter{kind: kind}, nil
}

func (f Formatter) Kind() Kind {
	return f.kind
}

// Format converts raw into a display string. With clean set, every
// character that is not an ASCII digit or '.' is stripped and the rest must
// parse as a float; otherwise an ErrParse error is returned.
func (f Formatter) Format(raw string, clean bool, p Params) (string, error) {
	errFactory := errors.New()

	text := raw
	if clean {
		text = Clean(raw)
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			logger.Debug().
				Str("raw", raw).
				Str("formatter", f.kind.String()).
				Msg("Value is not numeric")

			return "", errFactory.WithData(errors.ErrParse, raw)
		}
	}

	return transforms[f.kind](text, p)
}

// Clean keeps only ASCII digits and '.'.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteByte(c)
		}
	}

	return b.String()
}

// CelsiusToFahrenheit converts and floors toward negative infinity.
func CelsiusToFahrenheit(c float64) int {
	return int(math.Floor(c*9/5 + 32))
}

func identity(text string, _ Params) (string, error) {
	return text, nil
}

func suffix(unit string) Transform {
	return func(text string, _ Params) (string, error) {
		return text + unit, nil
	}
}

func power(text string, _ Params) (string, error) {
	watts, err := parseNumber(text)
	if err != nil {
		return "", err
	}

	return strconv.Itoa(int(math.Floor(watts))) + " W", nil
}

func temperature(text string, p Params) (string, error) {
	switch p.TemperatureUnit {
	case Celsius:
		return text + "°C", nil
	case Fahrenheit:
		c, err := parseNumber(text)
		if err != nil {
			return "", err
		}

		return strconv.Itoa(CelsiusToFahrenheit(c)) + "°F", nil
	default:
		return "", errors.New().WithData(errors.ErrInvalidSetting, int(p.TemperatureUnit))
	}
}

func parseNumber(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, errors.New().WithData(errors.ErrParse, text)
	}

	return v, nil
}
