// Package gpu finds DRM cards in sysfs and picks the one to monitor.
package gpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	drmClassPath = "class/drm"
	amdgpuDriver = "amdgpu"

	// Auto asks Select for the first amdgpu card.
	Auto = "auto"
	// DefaultCard is used when nothing can be discovered.
	DefaultCard = "card0"
)

// ErrNotFound is returned by Select when the requested card does not exist.
var ErrNotFound = errors.New("gpu not found")

// Info describes a single GPU device discovered via sysfs.
type Info struct {
	ID         string `json:"id"`
	PCI        string `json:"pci"`
	PCIID      string `json:"pci_id"`
	Driver     string `json:"driver"`
	Name       string `json:"name"`
	RenderNode string `json:"render_node,omitempty"`
	// DevicePath is the card's device directory, e.g. /sys/class/drm/card0/device.
	DevicePath string `json:"device_path"`
}

// Fallback describes DefaultCard under root without reading anything.
func Fallback(root string) Info {
	return Info{
		ID:         DefaultCard,
		DevicePath: devicePath(root, DefaultCard),
	}
}

// Title is the one-line description shown above the dashboard rows.
func (i Info) Title() string {
	var b strings.Builder
	b.WriteString(i.ID)
	if i.Name != "" {
		b.WriteString(": ")
		b.WriteString(i.Name)
	}
	if i.PCI != "" {
		fmt.Fprintf(&b, " (%s)", i.PCI)
	}
	return b.String()
}

// Discover enumerates DRM cards exposed via sysfs under root, ordered by card
// number.
func Discover(root string, logger *slog.Logger) ([]Info, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sysRoot, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open sysfs root: %w", err)
	}
	defer sysRoot.Close()

	entries, err := fs.ReadDir(sysRoot.FS(), drmClassPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("drm class path missing", "path", filepath.Join(root, drmClassPath))
			return nil, nil
		}
		return nil, fmt.Errorf("read drm class dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		id := entry.Name()
		if _, ok := cardNumber(id); !ok {
			continue
		}
		if !entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		info, err := readCard(sysRoot, id)
		if err != nil {
			logger.Warn("failed to load card info", "card", id, "err", err)
			continue
		}
		info.DevicePath = devicePath(root, id)
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b Info) int {
		na, _ := cardNumber(a.ID)
		nb, _ := cardNumber(b.ID)
		return na - nb
	})
	return infos, nil
}

// Select picks the card to monitor. Auto prefers the first amdgpu card and
// falls back to the first card of any driver.
func Select(infos []Info, want string) (Info, error) {
	if want == "" || want == Auto {
		for _, info := range infos {
			if info.Driver == amdgpuDriver {
				return info, nil
			}
		}
		if len(infos) > 0 {
			return infos[0], nil
		}
		return Info{}, ErrNotFound
	}

	for _, info := range infos {
		if info.ID == want {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("%w: %s", ErrNotFound, want)
}

func readCard(sysRoot *os.Root, id string) (Info, error) {
	deviceRoot, err := sysRoot.OpenRoot(path.Join(drmClassPath, id, "device"))
	if err != nil {
		return Info{}, fmt.Errorf("open device root: %w", err)
	}
	defer deviceRoot.Close()

	info := Info{ID: id}
	ids := pciIDs{}

	if data, err := deviceRoot.ReadFile("uevent"); err == nil {
		uevent := parseUevent(string(data))
		info.PCI = uevent["PCI_SLOT_NAME"]
		info.Driver = uevent["DRIVER"]
		info.Name = uevent["PCI_ID_NAME"]
		ids.vendor, ids.device, _ = strings.Cut(uevent["PCI_ID"], ":")
		ids.subVendor, ids.subDevice, _ = strings.Cut(uevent["PCI_SUBSYS_ID"], ":")
	}

	if ids.vendor == "" || ids.device == "" {
		ids.vendor = readTrim(deviceRoot, "vendor")
		ids.device = readTrim(deviceRoot, "device")
	}
	if ids.subVendor == "" || ids.subDevice == "" {
		ids.subVendor = readTrim(deviceRoot, "subsystem_vendor")
		ids.subDevice = readTrim(deviceRoot, "subsystem_device")
	}
	if ids.vendor != "" && ids.device != "" {
		info.PCIID = normalizePCIID(ids.vendor) + ":" + normalizePCIID(ids.device)
	}

	if info.Name == "" {
		info.Name = readTrim(deviceRoot, "product_name")
	}
	if resolved := names.resolve(ids); preferResolved(info.Name, resolved) {
		info.Name = resolved
	}
	if info.Name == "" {
		info.Name = info.Driver
	}

	info.RenderNode = findRenderNode(deviceRoot)
	return info, nil
}

func findRenderNode(deviceRoot *os.Root) string {
	entries, err := fs.ReadDir(deviceRoot.FS(), "drm")
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "renderD") {
			return path.Join("/dev/dri", entry.Name())
		}
	}
	return ""
}

func devicePath(root, id string) string {
	return filepath.Join(root, drmClassPath, id, "device")
}

// cardNumber accepts "cardN" and rejects connector entries like card0-DP-1.
func cardNumber(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "card")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

func parseUevent(data string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok {
			values[key] = strings.TrimSpace(value)
		}
	}
	return values
}

func readTrim(root *os.Root, name string) string {
	data, err := root.ReadFile(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
