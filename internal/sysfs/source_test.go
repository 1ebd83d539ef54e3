package sysfs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDirReadLine(t *testing.T) {
	t.Parallel()

	devicePath := t.TempDir()
	writeFile(t, filepath.Join(devicePath, "gpu_busy_percent"), "47\n")
	writeFile(t, filepath.Join(devicePath, "current_link_speed"), "16.0 GT/s PCIe\nignored\n")
	writeFile(t, filepath.Join(devicePath, "empty"), "\n")
	writeFile(t, filepath.Join(devicePath, "hwmon", "hwmon3", "temp1_input"), "  65000  \n")

	dir := Open(devicePath, discardLogger())
	t.Cleanup(func() { _ = dir.Close() })

	tests := []struct {
		name string
		attr string
		want string
	}{
		{name: "plain value", attr: "gpu_busy_percent", want: "47"},
		{name: "first line only", attr: "current_link_speed", want: "16.0 GT/s PCIe"},
		{name: "nested and trimmed", attr: "hwmon/hwmon3/temp1_input", want: "65000"},
		{name: "empty file", attr: "empty", want: Sentinel},
		{name: "missing file", attr: "mem_info_vram_used", want: Sentinel},
		{name: "escape attempt", attr: "../../etc/passwd", want: Sentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dir.ReadLine(tt.attr))
		})
	}
}

func TestOpenMissingDevice(t *testing.T) {
	t.Parallel()

	dir := Open(filepath.Join(t.TempDir(), "absent"), discardLogger())
	assert.Equal(t, Sentinel, dir.ReadLine("gpu_busy_percent"))
	assert.NoError(t, dir.Close())
}

func TestDetectHwmon(t *testing.T) {
	t.Parallel()

	devicePath := t.TempDir()
	assert.Equal(t, "hwmon/hwmon0", DetectHwmon(devicePath))

	require.NoError(t, os.MkdirAll(filepath.Join(devicePath, "hwmon", "hwmon4"), 0o750))
	assert.Equal(t, filepath.Join("hwmon", "hwmon4"), DetectHwmon(devicePath))
}
