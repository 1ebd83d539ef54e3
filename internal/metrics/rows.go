package metrics

import "strings"

// Kind identifies one dashboard row.
type Kind int

// Kinds in display order.
const (
	Busy Kind = iota
	VRAM
	GTT
	CPUVisibleVRAM
	Power
	Temperature
	Fan
	Voltage
	GFXClock
	MemClock
	LinkSpeed
	LinkWidth

	KindCount
)

// Row describes how a Kind is named, labelled and drawn.
type Row struct {
	Key   string
	Kind  Kind
	Label string
	// Bar rows carry a fraction; the others are plain values.
	Bar bool
}

var rows = [KindCount]Row{
	{Key: "busy", Kind: Busy, Label: "GPU busy:", Bar: true},
	{Key: "vram", Kind: VRAM, Label: "GPU vram:", Bar: true},
	{Key: "gtt", Kind: GTT, Label: "GTT:", Bar: true},
	{Key: "cpu_vis", Kind: CPUVisibleVRAM, Label: "CPU Vis:", Bar: true},
	{Key: "power", Kind: Power, Label: "Power draw:", Bar: true},
	{Key: "temperature", Kind: Temperature, Label: "Temperature:", Bar: true},
	{Key: "fan", Kind: Fan, Label: "Fan speed:", Bar: true},
	{Key: "voltage", Kind: Voltage, Label: "Voltage:"},
	{Key: "gfx_clock", Kind: GFXClock, Label: "GFX clock:"},
	{Key: "mem_clock", Kind: MemClock, Label: "Mem clock:"},
	{Key: "link_speed", Kind: LinkSpeed, Label: "Link speed:"},
	{Key: "link_width", Kind: LinkWidth, Label: "Link width:"},
}

// Rows returns the full row table in display order.
func Rows() []Row {
	out := make([]Row, len(rows))
	copy(out, rows[:])
	return out
}

// RowFor returns the table entry for k.
func RowFor(k Kind) Row {
	return rows[k]
}

func (k Kind) String() string {
	if k < 0 || k >= KindCount {
		return "unknown"
	}
	return rows[k].Key
}

// Lookup resolves a row key. Matching ignores case and surrounding spaces and
// accepts '-' in place of '_'.
func Lookup(name string) (Kind, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	for _, row := range rows {
		if row.Key == key {
			return row.Kind, true
		}
	}
	return 0, false
}

// Keys lists the row keys in display order.
func Keys() []string {
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	return keys
}

// Registry tracks which rows are enabled. It is mutated during startup only.
type Registry struct {
	enabled [KindCount]bool
}

// NewRegistry returns a registry with every row enabled.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.enabled {
		r.enabled[i] = true
	}
	return r
}

// Disable turns off the row with the given key. Unknown keys are ignored.
func (r *Registry) Disable(name string) {
	if kind, ok := Lookup(name); ok {
		r.enabled[kind] = false
	}
}

// DisableList disables every comma separated key in csv.
func (r *Registry) DisableList(csv string) {
	for _, token := range strings.Split(csv, ",") {
		r.Disable(token)
	}
}

// Enabled reports whether k is shown.
func (r *Registry) Enabled(k Kind) bool {
	return r.enabled[k]
}

// AllDisabled reports whether no row is left to draw.
func (r *Registry) AllDisabled() bool {
	for _, on := range r.enabled {
		if on {
			return false
		}
	}
	return true
}

// EnabledRows returns the enabled rows in display order.
func (r *Registry) EnabledRows() []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if r.enabled[row.Kind] {
			out = append(out, row)
		}
	}
	return out
}
