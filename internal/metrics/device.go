// Package metrics turns raw amdgpu sysfs attributes into dashboard rows.
package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
)

const (
	vramTotalFile    = "mem_info_vram_total"
	vramUsedFile     = "mem_info_vram_used"
	gttTotalFile     = "mem_info_gtt_total"
	gttUsedFile      = "mem_info_gtt_used"
	visVRAMTotalFile = "mem_info_vis_vram_total"
	visVRAMUsedFile  = "mem_info_vis_vram_used"
	gpuBusyFile      = "gpu_busy_percent"
	linkSpeedFile    = "current_link_speed"
	linkWidthFile    = "current_link_width"

	hwmonPowerMinFile     = "power1_cap_min"
	hwmonPowerMaxFile     = "power1_cap_max"
	hwmonPowerAverageFile = "power1_average"
	hwmonTempCritFile     = "temp1_crit"
	hwmonTempFile         = "temp1_input"
	hwmonFanMinFile       = "fan1_min"
	hwmonFanMaxFile       = "fan1_max"
	hwmonFanFile          = "fan1_input"
	hwmonVoltageFile      = "in0_input"
	hwmonGFXClockFile     = "freq1_input"
	hwmonMemClockFile     = "freq2_input"
)

const (
	bytesPerMiB = 1024 * 1024
	microPerOne = 1_000_000
	milliPerOne = 1000
	hzPerMHz    = 1_000_000
)

// UnknownText replaces the value of a row whose attribute could not be parsed.
const UnknownText = "N/A"

// ErrMalformed marks an attribute whose content is not the expected number.
var ErrMalformed = errors.New("malformed attribute")

// Source reads one attribute line relative to the device directory. Missing
// attributes come back as a default value instead of an error.
type Source interface {
	ReadLine(name string) string
}

// Device converts live readings into samples using calibration values that
// are captured once, when the Device is created.
type Device struct {
	src      Source
	hwmonDir string
	logger   *slog.Logger

	vramTotal    uint64
	gttTotal     uint64
	visVRAMTotal uint64
	powerMin     uint64
	powerMax     uint64
	tempCrit     uint64
	fanMin       uint64
	fanMax       uint64
}

// NewDevice reads the calibration attributes from src. hwmonDir is the hwmon
// directory relative to the device, e.g. "hwmon/hwmon1". Calibration values
// that fail to parse are logged and treated as zero.
func NewDevice(src Source, hwmonDir string, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		src:      src,
		hwmonDir: hwmonDir,
		logger:   logger,
	}

	d.vramTotal = d.calibration(vramTotalFile)
	d.gttTotal = d.calibration(gttTotalFile)
	d.visVRAMTotal = d.calibration(visVRAMTotalFile)
	d.powerMin = d.calibration(d.hwmon(hwmonPowerMinFile))
	d.powerMax = d.calibration(d.hwmon(hwmonPowerMaxFile))
	d.tempCrit = d.calibration(d.hwmon(hwmonTempCritFile))
	d.fanMin = d.calibration(d.hwmon(hwmonFanMinFile))
	d.fanMax = d.calibration(d.hwmon(hwmonFanMaxFile))

	logger.Debug("device calibrated",
		"vram_total", d.vramTotal,
		"gtt_total", d.gttTotal,
		"vis_vram_total", d.visVRAMTotal,
		"power_min", d.powerMin,
		"power_max", d.powerMax,
		"temp_crit", d.tempCrit,
		"fan_min", d.fanMin,
		"fan_max", d.fanMax,
	)

	return d
}

// Fetch reads the current value for k. On a malformed attribute the returned
// sample is the row's unknown placeholder and the error wraps ErrMalformed.
func (d *Device) Fetch(k Kind) (Sample, error) {
	switch k {
	case Busy:
		return d.busy()
	case VRAM:
		return d.memory(k, vramUsedFile, d.vramTotal)
	case GTT:
		return d.memory(k, gttUsedFile, d.gttTotal)
	case CPUVisibleVRAM:
		return d.memory(k, visVRAMUsedFile, d.visVRAMTotal)
	case Power:
		return d.power()
	case Temperature:
		return d.temperature()
	case Fan:
		return d.fan()
	case Voltage:
		return d.voltage(), nil
	case GFXClock:
		return d.clock(k, d.hwmon(hwmonGFXClockFile))
	case MemClock:
		return d.clock(k, d.hwmon(hwmonMemClockFile))
	case LinkSpeed:
		return Sample{Text: d.src.ReadLine(linkSpeedFile)}, nil
	case LinkWidth:
		return d.linkWidth(), nil
	default:
		return Sample{}, fmt.Errorf("unknown metric kind %d", k)
	}
}

func (d *Device) busy() (Sample, error) {
	raw := d.src.ReadLine(gpuBusyFile)
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Unknown(Busy), malformed(gpuBusyFile, raw)
	}
	return Sample{
		Text:     raw + "%",
		Fraction: float64Ptr(pct / 100),
		Value:    float64Ptr(pct),
	}, nil
}

func (d *Device) memory(k Kind, usedFile string, total uint64) (Sample, error) {
	raw := d.src.ReadLine(usedFile)
	used, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Unknown(k), malformed(usedFile, raw)
	}
	return Sample{
		Text:     fmt.Sprintf("%d/%dMiB", used/bytesPerMiB, total/bytesPerMiB),
		Fraction: float64Ptr(float64(used) / float64(total)),
		Value:    float64Ptr(float64(used)),
	}, nil
}

func (d *Device) power() (Sample, error) {
	name := d.hwmon(hwmonPowerAverageFile)
	raw := d.src.ReadLine(name)
	microwatts, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Unknown(Power), malformed(name, raw)
	}
	span := float64(d.powerMax) - float64(d.powerMin)
	return Sample{
		Text:     fmt.Sprintf("%dW", microwatts/microPerOne),
		Fraction: float64Ptr((float64(microwatts) - float64(d.powerMin)) / span),
		Value:    float64Ptr(float64(microwatts) / microPerOne),
	}, nil
}

func (d *Device) temperature() (Sample, error) {
	name := d.hwmon(hwmonTempFile)
	raw := d.src.ReadLine(name)
	millidegrees, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Unknown(Temperature), malformed(name, raw)
	}
	return Sample{
		Text:     fmt.Sprintf("%dC", millidegrees/milliPerOne),
		Fraction: float64Ptr(float64(millidegrees) / float64(d.tempCrit)),
		Value:    float64Ptr(float64(millidegrees) / milliPerOne),
	}, nil
}

func (d *Device) fan() (Sample, error) {
	name := d.hwmon(hwmonFanFile)
	raw := d.src.ReadLine(name)
	rpm, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Unknown(Fan), malformed(name, raw)
	}
	span := float64(d.fanMax) - float64(d.fanMin)
	return Sample{
		Text:     raw + "RPM",
		Fraction: float64Ptr((rpm - float64(d.fanMin)) / span),
		Value:    float64Ptr(rpm),
	}, nil
}

// voltage is shown verbatim; the number is only needed for export.
func (d *Device) voltage() Sample {
	raw := d.src.ReadLine(d.hwmon(hwmonVoltageFile))
	sample := Sample{Text: raw + "mV"}
	if mv, err := strconv.ParseFloat(raw, 64); err == nil {
		sample.Value = float64Ptr(mv)
	}
	return sample
}

func (d *Device) clock(k Kind, name string) (Sample, error) {
	raw := d.src.ReadLine(name)
	hz, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Unknown(k), malformed(name, raw)
	}
	mhz := hz / hzPerMHz
	return Sample{
		Text:  strconv.FormatUint(mhz, 10) + "MHz",
		Value: float64Ptr(float64(mhz)),
	}, nil
}

func (d *Device) linkWidth() Sample {
	raw := d.src.ReadLine(linkWidthFile)
	sample := Sample{Text: "x" + raw}
	if lanes, err := strconv.ParseFloat(raw, 64); err == nil {
		sample.Value = float64Ptr(lanes)
	}
	return sample
}

func (d *Device) calibration(name string) uint64 {
	raw := d.src.ReadLine(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		d.logger.Warn("calibration value unusable, using 0", "name", name, "value", raw)
		return 0
	}
	return value
}

func (d *Device) hwmon(file string) string {
	return path.Join(d.hwmonDir, file)
}

// Unknown is the placeholder shown for a row whose reading is unusable.
func Unknown(k Kind) Sample {
	sample := Sample{Text: UnknownText}
	if RowFor(k).Bar {
		sample.Fraction = float64Ptr(0)
	}
	return sample
}

func malformed(name, raw string) error {
	return fmt.Errorf("%w: %s=%q", ErrMalformed, name, raw)
}
