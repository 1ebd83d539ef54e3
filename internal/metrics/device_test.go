package metrics

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource serves attributes from memory and falls back to "0" like sysfs.Dir.
type mapSource map[string]string

func (m mapSource) ReadLine(name string) string {
	if value, ok := m[name]; ok {
		return value
	}
	return "0"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullSource() mapSource {
	return mapSource{
		"mem_info_vram_total":     "1073741824",
		"mem_info_vram_used":      "536870912",
		"mem_info_gtt_total":      "4294967296",
		"mem_info_gtt_used":       "52428800",
		"mem_info_vis_vram_total": "268435456",
		"mem_info_vis_vram_used":  "268435456",
		"gpu_busy_percent":        "47",
		"current_link_speed":      "16.0 GT/s PCIe",
		"current_link_width":      "16",

		"hwmon/hwmon1/power1_cap_min": "0",
		"hwmon/hwmon1/power1_cap_max": "100000000",
		"hwmon/hwmon1/power1_average": "33000000",
		"hwmon/hwmon1/temp1_crit":     "100000",
		"hwmon/hwmon1/temp1_input":    "67500",
		"hwmon/hwmon1/fan1_min":       "0",
		"hwmon/hwmon1/fan1_max":       "3000",
		"hwmon/hwmon1/fan1_input":     "1200",
		"hwmon/hwmon1/in0_input":      "806",
		"hwmon/hwmon1/freq1_input":    "2400000000",
		"hwmon/hwmon1/freq2_input":    "1000999999",
	}
}

func TestDeviceFetchBarKinds(t *testing.T) {
	t.Parallel()

	dev := NewDevice(fullSource(), "hwmon/hwmon1", discardLogger())

	tests := []struct {
		kind     Kind
		text     string
		fraction float64
		value    float64
	}{
		{kind: Busy, text: "47%", fraction: 0.47, value: 47},
		{kind: VRAM, text: "512/1024MiB", fraction: 0.5, value: 536870912},
		{kind: GTT, text: "50/4096MiB", fraction: 52428800.0 / 4294967296.0, value: 52428800},
		{kind: CPUVisibleVRAM, text: "256/256MiB", fraction: 1, value: 268435456},
		{kind: Power, text: "33W", fraction: 0.33, value: 33},
		{kind: Temperature, text: "67C", fraction: 0.675, value: 67.5},
		{kind: Fan, text: "1200RPM", fraction: 0.4, value: 1200},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			sample, err := dev.Fetch(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.text, sample.Text)
			require.True(t, sample.HasBar())
			assert.InDelta(t, tt.fraction, *sample.Fraction, 1e-9)
			require.NotNil(t, sample.Value)
			assert.InDelta(t, tt.value, *sample.Value, 1e-9)
		})
	}
}

func TestDeviceFetchPlainKinds(t *testing.T) {
	t.Parallel()

	dev := NewDevice(fullSource(), "hwmon/hwmon1", discardLogger())

	tests := []struct {
		kind Kind
		text string
	}{
		{kind: Voltage, text: "806mV"},
		{kind: GFXClock, text: "2400MHz"},
		{kind: MemClock, text: "1000MHz"},
		{kind: LinkSpeed, text: "16.0 GT/s PCIe"},
		{kind: LinkWidth, text: "x16"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			sample, err := dev.Fetch(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.text, sample.Text)
			assert.False(t, sample.HasBar())
		})
	}
}

func TestDevicePowerBoundaryIsExact(t *testing.T) {
	t.Parallel()

	dev := NewDevice(mapSource{
		"hwmon/hwmon0/power1_cap_min": "0",
		"hwmon/hwmon0/power1_cap_max": "100000000",
		"hwmon/hwmon0/power1_average": "33000000",
	}, "hwmon/hwmon0", discardLogger())

	sample, err := dev.Fetch(Power)
	require.NoError(t, err)
	assert.Equal(t, 0.33, *sample.Fraction)
	assert.False(t, *sample.Fraction < 0.33)
}

func TestDeviceMissingCalibrationYieldsNonFiniteFraction(t *testing.T) {
	t.Parallel()

	dev := NewDevice(mapSource{
		"mem_info_vram_used":       "1048576",
		"hwmon/hwmon0/temp1_input": "0",
	}, "hwmon/hwmon0", discardLogger())

	vram, err := dev.Fetch(VRAM)
	require.NoError(t, err)
	assert.Equal(t, "1/0MiB", vram.Text)
	assert.True(t, math.IsInf(*vram.Fraction, 1))

	temp, err := dev.Fetch(Temperature)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(*temp.Fraction))
}

func TestDeviceFractionsAreNotClamped(t *testing.T) {
	t.Parallel()

	dev := NewDevice(mapSource{
		"hwmon/hwmon0/power1_cap_min": "50000000",
		"hwmon/hwmon0/power1_cap_max": "150000000",
		"hwmon/hwmon0/power1_average": "10000000",
		"hwmon/hwmon0/fan1_min":       "0",
		"hwmon/hwmon0/fan1_max":       "1000",
		"hwmon/hwmon0/fan1_input":     "2500",
	}, "hwmon/hwmon0", discardLogger())

	power, err := dev.Fetch(Power)
	require.NoError(t, err)
	assert.Less(t, *power.Fraction, 0.0)

	fan, err := dev.Fetch(Fan)
	require.NoError(t, err)
	assert.Greater(t, *fan.Fraction, 1.0)
}

func TestDeviceMalformedReadingDegradesRow(t *testing.T) {
	t.Parallel()

	src := fullSource()
	src["mem_info_vram_used"] = "garbage"
	src["hwmon/hwmon1/freq1_input"] = "2.4GHz"
	dev := NewDevice(src, "hwmon/hwmon1", discardLogger())

	vram, err := dev.Fetch(VRAM)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, UnknownText, vram.Text)
	require.True(t, vram.HasBar())
	assert.Zero(t, *vram.Fraction)

	clock, err := dev.Fetch(GFXClock)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, UnknownText, clock.Text)
	assert.False(t, clock.HasBar())

	busy, err := dev.Fetch(Busy)
	require.NoError(t, err)
	assert.Equal(t, "47%", busy.Text)
}

func TestDeviceMalformedCalibrationIsZero(t *testing.T) {
	t.Parallel()

	src := fullSource()
	src["mem_info_vram_total"] = "n/a"
	dev := NewDevice(src, "hwmon/hwmon1", discardLogger())

	sample, err := dev.Fetch(VRAM)
	require.NoError(t, err)
	assert.Equal(t, "512/0MiB", sample.Text)
	assert.True(t, math.IsInf(*sample.Fraction, 1))
}

func TestDeviceCalibrationReadOnce(t *testing.T) {
	t.Parallel()

	src := fullSource()
	dev := NewDevice(src, "hwmon/hwmon1", discardLogger())
	src["mem_info_vram_total"] = "2147483648"

	sample, err := dev.Fetch(VRAM)
	require.NoError(t, err)
	assert.Equal(t, "512/1024MiB", sample.Text)
}

func TestDeviceUnknownKind(t *testing.T) {
	t.Parallel()

	dev := NewDevice(mapSource{}, "hwmon/hwmon0", discardLogger())
	_, err := dev.Fetch(KindCount)
	assert.Error(t, err)
}
