// Package exporter writes the latest dashboard readings as a node_exporter
// textfile, so a running dashboard can also feed Prometheus.
package exporter

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skobkin/amdgputop/internal/metrics"
)

// Textfile overwrites one .prom file with the readings of every tick.
type Textfile struct {
	path      string
	registry  *prometheus.Registry
	collector *readingsCollector
	now       func() time.Time
	logger    *slog.Logger
	failing   bool
}

// NewTextfile builds an exporter for the GPU identified by gpuID.
func NewTextfile(path, gpuID string, logger *slog.Logger) (*Textfile, error) {
	if path == "" {
		return nil, errors.New("textfile path must not be empty")
	}

	collector := newReadingsCollector(gpuID)
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return nil, fmt.Errorf("register collector: %w", err)
	}

	return &Textfile{
		path:      path,
		registry:  registry,
		collector: collector,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Path returns the file being written.
func (t *Textfile) Path() string {
	return t.path
}

// Publish stores readings and rewrites the file atomically.
func (t *Textfile) Publish(readings []metrics.Reading) error {
	t.collector.set(readings, t.now())

	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		t.failing = true
		return fmt.Errorf("write textfile %s: %w", t.path, err)
	}
	if t.failing {
		t.failing = false
		t.logger.Info("textfile writes recovered", "path", t.path)
	}
	return nil
}
