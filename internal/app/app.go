// Package app wires up and runs the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/skobkin/amdgputop/internal/config"
	"github.com/skobkin/amdgputop/internal/dashboard"
	"github.com/skobkin/amdgputop/internal/exporter"
	"github.com/skobkin/amdgputop/internal/gpu"
	"github.com/skobkin/amdgputop/internal/metrics"
	"github.com/skobkin/amdgputop/internal/signals"
	"github.com/skobkin/amdgputop/internal/sysfs"
	"github.com/skobkin/amdgputop/internal/tty"
)

// Run monitors the configured GPU. With cfg.Once it prints one snapshot to
// out; otherwise it takes over the terminal on stdin/out until asked to quit.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config, out *os.File) error {
	appLogger := baseLogger.With("component", "app")

	rows := cfg.Registry().EnabledRows()
	if len(rows) == 0 {
		return config.ErrAllRowsDisabled
	}

	target, err := resolveGPU(cfg, baseLogger)
	if err != nil {
		return err
	}
	appLogger.Info("monitoring gpu", "gpu_id", target.ID, "name", target.Name, "device", target.DevicePath)

	dir := sysfs.Open(target.DevicePath, baseLogger.With("component", "sysfs", "gpu_id", target.ID))
	defer func() {
		if err := dir.Close(); err != nil {
			appLogger.Debug("close device dir", "err", err)
		}
	}()

	hwmon := sysfs.DetectHwmon(target.DevicePath)
	device := metrics.NewDevice(dir, hwmon, baseLogger.With("component", "metrics", "gpu_id", target.ID))

	var sink dashboard.Sink
	if cfg.Textfile != "" {
		textfile, err := exporter.NewTextfile(cfg.Textfile, target.ID, baseLogger.With("component", "exporter"))
		if err != nil {
			return fmt.Errorf("init textfile exporter: %w", err)
		}
		appLogger.Info("writing textfile", "path", textfile.Path())
		sink = textfile
	}

	if cfg.Once {
		return dashboard.WriteSnapshot(out, rows, device, sink)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	bridge := signals.Install(ctx)

	term, err := tty.Open(os.Stdin, out, tty.Options{
		Color:  cfg.Color,
		Logger: baseLogger,
	})
	if err != nil {
		if errors.Is(err, tty.ErrNotTerminal) {
			return fmt.Errorf("open terminal: %w (use --once for a plain snapshot)", err)
		}
		return fmt.Errorf("open terminal: %w", err)
	}
	defer term.Close()

	dash, err := dashboard.New(dashboard.Options{
		Interval: cfg.Interval,
		Rows:     rows,
		Title:    target.Title(),
		Device:   device,
		Surface:  term,
		Keys:     term.Keys(),
		Signals:  bridge,
		Sink:     sink,
		Logger:   baseLogger.With("component", "dashboard"),
	})
	if err != nil {
		return fmt.Errorf("init dashboard: %w", err)
	}

	runErr := dash.Run(ctx)
	if err := term.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("restore terminal: %w", err))
	}
	appLogger.Info("dashboard stopped")
	return runErr
}

// resolveGPU picks the card to read. Auto mode falls back to card0 when
// discovery finds nothing, since the device may still be readable.
func resolveGPU(cfg config.Config, logger *slog.Logger) (gpu.Info, error) {
	auto := cfg.Card == gpu.Auto

	infos, err := gpu.Discover(cfg.SysfsRoot, logger.With("component", "gpu_discovery"))
	if err != nil {
		if !auto {
			return gpu.Info{}, fmt.Errorf("discover gpus: %w", err)
		}
		logger.Warn("gpu discovery failed, using default card", "card", gpu.DefaultCard, "err", err)
		return gpu.Fallback(cfg.SysfsRoot), nil
	}

	info, err := gpu.Select(infos, cfg.Card)
	if err != nil {
		if auto && errors.Is(err, gpu.ErrNotFound) {
			logger.Warn("no gpus discovered, using default card", "card", gpu.DefaultCard)
			return gpu.Fallback(cfg.SysfsRoot), nil
		}
		return gpu.Info{}, fmt.Errorf("select gpu: %w", err)
	}
	return info, nil
}
