package exporter

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skobkin/amdgputop/internal/metrics"
	"github.com/skobkin/amdgputop/internal/render"
)

type readingsCollector struct {
	gpuID string

	mu       sync.Mutex
	readings []metrics.Reading
	at       time.Time

	values    map[metrics.Kind]*prometheus.Desc
	ratio     *prometheus.Desc
	timestamp *prometheus.Desc
}

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName("amdgputop", "gpu", name),
		help,
		append([]string{"gpu_id"}, labels...),
		nil,
	)
}

func newReadingsCollector(gpuID string) *readingsCollector {
	return &readingsCollector{
		gpuID: gpuID,

		values: map[metrics.Kind]*prometheus.Desc{
			metrics.Busy:           desc("busy_percent", "Current graphics engine busy percentage."),
			metrics.VRAM:           desc("vram_used_bytes", "Current VRAM usage in bytes."),
			metrics.GTT:            desc("gtt_used_bytes", "Current GTT usage in bytes."),
			metrics.CPUVisibleVRAM: desc("vis_vram_used_bytes", "Current CPU-visible VRAM usage in bytes."),
			metrics.Power:          desc("power_watts", "Current GPU power draw in Watts."),
			metrics.Temperature:    desc("temperature_celsius", "Current GPU temperature in Celsius."),
			metrics.Fan:            desc("fan_rpm", "Current fan speed in RPM."),
			metrics.Voltage:        desc("voltage_millivolts", "Current GPU core voltage in millivolts."),
			metrics.GFXClock:       desc("sclk_mhz", "Current shader clock in MHz."),
			metrics.MemClock:       desc("mclk_mhz", "Current memory clock in MHz."),
			metrics.LinkWidth:      desc("pcie_link_width", "Current PCIe link width in lanes."),
		},
		ratio:     desc("ratio", "Bar position of a metric within its calibrated range, 0 to 1.", "metric"),
		timestamp: desc("sample_timestamp_seconds", "Unix timestamp of the latest GPU sample."),
	}
}

func (c *readingsCollector) set(readings []metrics.Reading, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings = append(c.readings[:0], readings...)
	c.at = at
}

func (c *readingsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.values {
		ch <- d
	}
	ch <- c.ratio
	ch <- c.timestamp
}

func (c *readingsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.at.IsZero() {
		return
	}
	for _, r := range c.readings {
		if d, ok := c.values[r.Kind]; ok && r.Sample.Value != nil {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, *r.Sample.Value, c.gpuID)
		}
		if r.Sample.Fraction != nil {
			ch <- prometheus.MustNewConstMetric(c.ratio, prometheus.GaugeValue, render.Clamp(*r.Sample.Fraction), c.gpuID, metrics.RowFor(r.Kind).Key)
		}
	}
	ch <- prometheus.MustNewConstMetric(c.timestamp, prometheus.GaugeValue, float64(c.at.Unix()), c.gpuID)
}
