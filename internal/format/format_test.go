package format

import (
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFormatter(t *testing.T, kind Kind) Formatter {
	t.Helper()
	f, err := New(kind)
	require.NoError(t, err)

	return f
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		raw   string
		clean bool
		unit  TemperatureUnit
		want  string
	}{
		{"name passes through", Identity, "NVIDIA GeForce RTX 3080", false, Celsius, "NVIDIA GeForce RTX 3080"},
		{"percent cleans suffix", Percent, "23 %\n", true, Celsius, "23 %"},
		{"memory", Memory, "1024 MiB", true, Celsius, "1024 MiB"},
		{"power floors", Power, "123.97 W", true, Celsius, "123 W"},
		{"celsius", Temperature, "47\n", true, Celsius, "47°C"},
		{"fahrenheit floors", Temperature, "47\n", true, Fahrenheit, "116°F"},
		{"fahrenheit exact", Temperature, "75", true, Fahrenheit, "167°F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustFormatter(t, tt.kind).Format(tt.raw, tt.clean, Params{TemperatureUnit: tt.unit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatNotNumeric(t *testing.T) {
	for _, raw := range []string{"", "[N/A]", "1.2.3", "\n"} {
		_, err := mustFormatter(t, Percent).Format(raw, true, Params{})
		require.Error(t, err, raw)
		assert.True(t, errors.HasCode(err, errors.ErrParse), raw)
	}

	_, err := mustFormatter(t, Power).Format("n/a", false, Params{})
	assert.True(t, errors.HasCode(err, errors.ErrParse))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "23", Clean("23 %\n"))
	assert.Equal(t, "12.5", Clean("-12.5 W"))
	assert.Equal(t, "", Clean("°C"))
}

func TestCleanFormatIdempotent(t *testing.T) {
	for _, kind := range []Kind{Percent, Memory, Power} {
		f := mustFormatter(t, kind)
		for _, raw := range []string{"23 %\n", "4096 MiB", "87.31 W", "0"} {
			once, err := f.Format(Clean(raw), true, Params{})
			require.NoError(t, err)
			twice, err := f.Format(Clean(Clean(raw)), true, Params{})
			require.NoError(t, err)
			assert.Equal(t, once, twice, "%s %q", kind, raw)
		}
	}
}

func TestCelsiusToFahrenheitFloors(t *testing.T) {
	assert.Equal(t, 167, CelsiusToFahrenheit(75))
	assert.Equal(t, 116, CelsiusToFahrenheit(47))
	assert.Equal(t, -40, CelsiusToFahrenheit(-40))
	assert.Equal(t, -41, CelsiusToFahrenheit(-40.5))
	assert.Equal(t, 32, CelsiusToFahrenheit(0))
}

func TestParseTemperatureUnit(t *testing.T) {
	unit, err := ParseTemperatureUnit(1)
	require.NoError(t, err)
	assert.Equal(t, Fahrenheit, unit)

	_, err = ParseTemperatureUnit(2)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidSetting))
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(Kind(42))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}
