package gpu

import (
	"strings"
	"sync"

	"github.com/jaypipes/pcidb"
)

type pciIDs struct {
	vendor, device       string
	subVendor, subDevice string
}

// nameResolver maps PCI ids to marketing names. The database is loaded on
// first use and kept for the process lifetime.
type nameResolver struct {
	once sync.Once
	db   *pcidb.PCIDB
}

var names nameResolver

func (r *nameResolver) load() *pcidb.PCIDB {
	r.once.Do(func() {
		db, err := pcidb.New()
		if err == nil {
			r.db = db
		}
	})
	return r.db
}

func (r *nameResolver) resolve(ids pciIDs) string {
	vendor, device := normalizePCIID(ids.vendor), normalizePCIID(ids.device)
	if vendor == "" || device == "" {
		return ""
	}
	db := r.load()
	if db == nil {
		return ""
	}

	product := db.Products[vendor+device]
	if product == nil {
		return ""
	}

	subVendor, subDevice := normalizePCIID(ids.subVendor), normalizePCIID(ids.subDevice)
	if subVendor != "" && subDevice != "" {
		for _, sub := range product.Subsystems {
			if sub != nil && sub.Name != "" &&
				strings.EqualFold(sub.VendorID, subVendor) && strings.EqualFold(sub.ID, subDevice) {
				return sub.Name
			}
		}
	}
	return product.Name
}

// normalizePCIID turns "0x73BF" or "73bf" into the 4-digit lowercase form.
func normalizePCIID(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(strings.ToLower(value), "0x")
	if value == "" {
		return ""
	}
	if len(value) < 4 {
		value = strings.Repeat("0", 4-len(value)) + value
	}
	return value
}

// preferResolved reports whether a pcidb name beats what sysfs offered.
// Driver names and raw ids are placeholders, not product names.
func preferResolved(current, resolved string) bool {
	if resolved == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(current))
	switch {
	case lower == "", lower == "amdgpu", lower == "radeon", lower == "unknown":
		return true
	case strings.HasPrefix(lower, "pci device"), strings.HasPrefix(lower, "0x"):
		return true
	default:
		return false
	}
}
