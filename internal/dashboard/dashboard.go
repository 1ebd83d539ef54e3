// Package dashboard runs the redraw-and-wait loop of the terminal UI.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/skobkin/amdgputop/internal/metrics"
	"github.com/skobkin/amdgputop/internal/render"
)

// Layout.
const (
	vpad        = 1
	hpad        = 2
	labelWidth  = 13
	valueColumn = labelWidth + hpad
)

// Keys that end the program.
const (
	keyETX    = 3
	keyEOT    = 4
	keyEscape = 27
)

// ErrNoRows is returned when every row was disabled.
var ErrNoRows = errors.New("no enabled rows")

// Surface is the terminal area owned by the dashboard.
type Surface interface {
	render.Screen
	Clear()
	Flush() error
	// Resize re-reads the terminal dimensions and rebuilds the surface.
	Resize() error
}

// Fetcher reads one row worth of telemetry.
type Fetcher interface {
	Fetch(k metrics.Kind) (metrics.Sample, error)
}

// Signals exposes pending OS requests.
type Signals interface {
	CheckAndClearTerminate() bool
	CheckAndClearResize() bool
	Wake() <-chan struct{}
}

// Sink receives the readings of every completed tick.
type Sink interface {
	Publish(readings []metrics.Reading) error
}

// Options configures a Dashboard.
type Options struct {
	Interval time.Duration
	Rows     []metrics.Row
	// Title is drawn on the top padding row when set.
	Title   string
	Device  Fetcher
	Surface Surface
	Keys    <-chan rune
	Signals Signals
	Sink    Sink
	Logger  *slog.Logger
}

// Dashboard draws the enabled rows every tick until asked to quit.
type Dashboard struct {
	interval time.Duration
	rows     []metrics.Row
	labels   []string
	title    string
	device   Fetcher
	surface  Surface
	keys     <-chan rune
	signals  Signals
	sink     Sink
	logger   *slog.Logger

	failing  map[metrics.Kind]bool
	readings []metrics.Reading
}

// New validates opts and builds a Dashboard.
func New(opts Options) (*Dashboard, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if len(opts.Rows) == 0 {
		return nil, ErrNoRows
	}
	if opts.Device == nil || opts.Surface == nil || opts.Signals == nil {
		return nil, fmt.Errorf("device, surface and signals are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	labels := make([]string, 0, len(opts.Rows))
	for _, row := range opts.Rows {
		labels = append(labels, row.Label)
	}

	return &Dashboard{
		interval: opts.Interval,
		rows:     append([]metrics.Row(nil), opts.Rows...),
		labels:   labels,
		title:    opts.Title,
		device:   opts.Device,
		surface:  opts.Surface,
		keys:     opts.Keys,
		signals:  opts.Signals,
		sink:     opts.Sink,
		logger:   logger,
		failing:  make(map[metrics.Kind]bool),
		readings: make([]metrics.Reading, 0, len(opts.Rows)),
	}, nil
}

// Run draws until a quit key, a terminate request or ctx cancellation.
func (d *Dashboard) Run(ctx context.Context) error {
	d.drawStatic()

	for {
		if d.signals.CheckAndClearTerminate() {
			d.logger.Info("terminate requested")
			return nil
		}
		if d.signals.CheckAndClearResize() {
			if err := d.relayout(); err != nil {
				return fmt.Errorf("resize: %w", err)
			}
		}

		d.tick()
		if err := d.surface.Flush(); err != nil {
			return fmt.Errorf("flush frame: %w", err)
		}

		if d.wait(ctx) {
			return nil
		}
	}
}

func (d *Dashboard) relayout() error {
	if err := d.surface.Resize(); err != nil {
		return err
	}
	d.surface.Clear()
	d.drawStatic()
	cols, rows := d.surface.Size()
	d.logger.Debug("terminal resized", "cols", cols, "rows", rows)
	return nil
}

func (d *Dashboard) drawStatic() {
	if d.title != "" {
		cols, _ := d.surface.Size()
		d.surface.Move(0, hpad)
		d.surface.ClearToEOL()
		d.surface.Write(runewidth.Truncate(d.title, max(cols-2*hpad, 0), ""), render.Style{Role: render.RoleValue, Bold: true})
	}
	render.DrawStatic(d.surface, vpad, hpad, d.labels)
}

func (d *Dashboard) tick() {
	cols, _ := d.surface.Size()
	barWidth := cols - valueColumn - hpad

	d.readings = d.readings[:0]
	row := vpad
	for _, r := range d.rows {
		sample := d.fetch(r.Kind)
		if r.Bar {
			fraction := 0.0
			if sample.Fraction != nil {
				fraction = *sample.Fraction
			}
			render.DrawBar(d.surface, row, valueColumn, barWidth, fraction, sample.Text)
		} else {
			render.DrawLabel(d.surface, row, valueColumn, sample.Text)
		}
		d.readings = append(d.readings, metrics.Reading{Kind: r.Kind, Sample: sample})
		row++
	}

	if d.sink != nil {
		if err := d.sink.Publish(d.readings); err != nil {
			d.logger.Warn("publish readings", "err", err)
		}
	}
}

func (d *Dashboard) fetch(k metrics.Kind) metrics.Sample {
	sample, err := d.device.Fetch(k)
	switch {
	case err != nil && !d.failing[k]:
		d.failing[k] = true
		d.logger.Warn("metric unavailable", "metric", k.String(), "err", err)
	case err != nil:
		d.logger.Debug("metric still unavailable", "metric", k.String(), "err", err)
	case d.failing[k]:
		delete(d.failing, k)
		d.logger.Info("metric recovered", "metric", k.String())
	}
	return sample
}

// wait blocks for up to one interval and reports whether the loop must end.
// A signal or any non-quit key ends the wait early.
func (d *Dashboard) wait(ctx context.Context) bool {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("context done", "reason", ctx.Err())
			return true
		case key, ok := <-d.keys:
			if !ok {
				d.keys = nil
				continue
			}
			return isQuitKey(key)
		case <-d.signals.Wake():
			return false
		case <-timer.C:
			return false
		}
	}
}

func isQuitKey(key rune) bool {
	switch key {
	case 'q', keyEOT, keyEscape, keyETX:
		return true
	default:
		return false
	}
}
