// Package render draws dashboard rows onto a character-cell screen.
package render

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

// BarGlyph fills the proportional part of a bar.
const BarGlyph = "|"

// Screen is the drawing surface rows are rendered onto. Rows and columns are
// zero based; writes past the right edge are clipped by the implementation.
type Screen interface {
	Size() (cols, rows int)
	Move(row, col int)
	ClearToEOL()
	Write(text string, style Style)
}

// Band is the color class of a bar.
type Band int

const (
	BandOK Band = iota
	BandWarn
	BandBad
)

// Band thresholds.
const (
	WarnThreshold = 0.33
	BadThreshold  = 0.67
)

// BandFor classifies a clamped fraction.
func BandFor(fraction float64) Band {
	switch {
	case fraction < WarnThreshold:
		return BandOK
	case fraction < BadThreshold:
		return BandWarn
	default:
		return BandBad
	}
}

// Role returns the style role bars of this band are drawn with.
func (b Band) Role() Role {
	switch b {
	case BandOK:
		return RoleOK
	case BandWarn:
		return RoleWarn
	default:
		return RoleBad
	}
}

func (b Band) String() string {
	switch b {
	case BandOK:
		return "ok"
	case BandWarn:
		return "warn"
	default:
		return "bad"
	}
}

// Clamp limits fraction to [0,1]. NaN and infinities mean the reading could
// not be normalised and count as 0.
func Clamp(fraction float64) float64 {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, fraction))
}

// DrawBar renders "[|||||     text]" into width columns starting at col.
// When text leaves no room for the brackets the row is only cleared.
func DrawBar(scr Screen, row, col, width int, fraction float64, text string) {
	scr.Move(row, col)
	scr.ClearToEOL()

	fraction = Clamp(fraction)
	track := width - (2 + runewidth.StringWidth(text))
	if track < 0 {
		return
	}
	bars := int(math.Floor(float64(track) * fraction))

	scr.Write("[", valueStyle)
	if bars > 0 {
		scr.Write(strings.Repeat(BarGlyph, bars), Style{Role: BandFor(fraction).Role()})
	}

	scr.Move(row, col+track+1)
	scr.Write(text+"]", valueStyle)
}

// DrawLabel renders a plain value row: cleared, then bold text.
func DrawLabel(scr Screen, row, col int, text string) {
	scr.Move(row, col)
	scr.ClearToEOL()
	scr.Write(text, Style{Role: RoleLabel, Bold: true})
}

// DrawStatic writes row titles top-down starting at row.
func DrawStatic(scr Screen, row, col int, labels []string) {
	for i, label := range labels {
		scr.Move(row+i, col)
		scr.Write(label, Style{Role: RoleLabel})
	}
}

var valueStyle = Style{Role: RoleValue, Bold: true}
