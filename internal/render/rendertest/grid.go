// Package rendertest provides an in-memory Screen for tests.
package rendertest

import (
	"strings"

	"github.com/skobkin/amdgputop/internal/render"
)

// Cell is one character position.
type Cell struct {
	Rune  rune
	Style render.Style
}

// Grid is a fixed-size character grid that records every write. It also
// implements the dashboard surface (Clear, Flush, Resize).
type Grid struct {
	cols, rows int
	cells      [][]Cell
	row, col   int

	// OutOfBounds counts characters written outside the grid.
	OutOfBounds int
	// Flushes counts completed frames.
	Flushes int
	// Clears counts full-screen clears.
	Clears int
	// Resizes counts surface rebuilds.
	Resizes int

	pendingCols, pendingRows int
}

// NewGrid returns a blank grid.
func NewGrid(cols, rows int) *Grid {
	g := &Grid{}
	g.reset(cols, rows)
	return g
}

func (g *Grid) reset(cols, rows int) {
	g.cols, g.rows = cols, rows
	g.pendingCols, g.pendingRows = cols, rows
	g.cells = make([][]Cell, rows)
	for i := range g.cells {
		g.cells[i] = blankRow(cols)
	}
}

func blankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = Cell{Rune: ' '}
	}
	return row
}

// Size implements render.Screen.
func (g *Grid) Size() (int, int) {
	return g.cols, g.rows
}

// Move implements render.Screen.
func (g *Grid) Move(row, col int) {
	g.row, g.col = row, col
}

// ClearToEOL implements render.Screen.
func (g *Grid) ClearToEOL() {
	if g.row < 0 || g.row >= g.rows {
		return
	}
	for c := max(g.col, 0); c < g.cols; c++ {
		g.cells[g.row][c] = Cell{Rune: ' '}
	}
}

// Write implements render.Screen.
func (g *Grid) Write(text string, style render.Style) {
	for _, r := range text {
		if g.row < 0 || g.row >= g.rows || g.col < 0 || g.col >= g.cols {
			g.OutOfBounds++
		} else {
			g.cells[g.row][g.col] = Cell{Rune: r, Style: style}
		}
		g.col++
	}
}

// Clear blanks the whole grid.
func (g *Grid) Clear() {
	g.Clears++
	for i := range g.cells {
		g.cells[i] = blankRow(g.cols)
	}
}

// Flush records a completed frame.
func (g *Grid) Flush() error {
	g.Flushes++
	return nil
}

// SetPendingSize changes the size reported after the next Resize, like a
// terminal window being dragged.
func (g *Grid) SetPendingSize(cols, rows int) {
	g.pendingCols, g.pendingRows = cols, rows
}

// Resize applies the pending size and blanks the grid.
func (g *Grid) Resize() error {
	g.Resizes++
	g.reset(g.pendingCols, g.pendingRows)
	return nil
}

// Line returns row as a string with trailing spaces removed.
func (g *Grid) Line(row int) string {
	if row < 0 || row >= g.rows {
		return ""
	}
	var b strings.Builder
	for _, cell := range g.cells[row] {
		b.WriteRune(cell.Rune)
	}
	return strings.TrimRight(b.String(), " ")
}

// Cell returns the cell at row, col.
func (g *Grid) Cell(row, col int) Cell {
	return g.cells[row][col]
}

// Count returns how many cells on row hold r.
func (g *Grid) Count(row int, r rune) int {
	n := 0
	for _, cell := range g.cells[row] {
		if cell.Rune == r {
			n++
		}
	}
	return n
}
