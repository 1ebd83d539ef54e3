// Package sysfs reads single-line attribute files exposed by the kernel for a
// DRM device.
package sysfs

import (
	"bufio"
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel is returned for attributes that are missing, unreadable or empty.
const Sentinel = "0"

const defaultHwmonDir = "hwmon/hwmon0"

// Dir reads attributes relative to a device directory such as
// /sys/class/drm/card0/device.
type Dir struct {
	path   string
	root   *os.Root
	logger *slog.Logger
}

// Open binds a Dir to devicePath. A missing device directory is not an
// error: every subsequent read yields Sentinel.
func Open(devicePath string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	dir := &Dir{
		path:   devicePath,
		logger: logger,
	}

	root, err := os.OpenRoot(devicePath)
	if err != nil {
		logger.Warn("device path unavailable, attributes will read as default", "path", devicePath, "err", err)
		return dir
	}
	dir.root = root
	return dir
}

// Path returns the device directory this Dir reads from.
func (d *Dir) Path() string {
	return d.path
}

// ReadLine returns the first line of the named attribute with surrounding
// whitespace removed, or Sentinel when it cannot be read.
func (d *Dir) ReadLine(name string) string {
	if d.root == nil {
		return Sentinel
	}

	data, err := d.root.ReadFile(name)
	if err != nil {
		d.logger.Debug("attribute read failed", "name", name, "err", err)
		return Sentinel
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return Sentinel
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return Sentinel
	}
	return line
}

// Close releases the underlying directory handle.
func (d *Dir) Close() error {
	if d.root == nil {
		return nil
	}
	return d.root.Close()
}

// DetectHwmon returns the hwmon subdirectory of devicePath, relative to it.
// amdgpu registers exactly one hwmon instance per card but its index is
// global, so it has to be looked up.
func DetectHwmon(devicePath string) string {
	hwmonRoot := filepath.Join(devicePath, "hwmon")
	entries, err := os.ReadDir(hwmonRoot)
	if err != nil {
		return defaultHwmonDir
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "hwmon") {
			continue
		}
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			return filepath.Join("hwmon", entry.Name())
		}
	}
	return defaultHwmonDir
}
