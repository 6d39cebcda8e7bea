package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShapeMismatch is returned when two grids that must align differ
	// in rows or columns.
	ErrShapeMismatch = errors.New("raster: grid shape mismatch")

	// ErrDegenerate is returned for grids with a zero dimension.
	ErrDegenerate = errors.New("raster: degenerate grid dimensions")
)

// Shaper is anything with a fixed row/column shape.
type Shaper interface {
	Shape() (rows, cols int)
}

// CheckShape returns ErrShapeMismatch when a and b do not share a shape.
func CheckShape(a, b Shaper) error {
	ar, ac := a.Shape()
	br, bc := b.Shape()
	if ar != br || ac != bc {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, ar, ac, br, bc)
	}
	return nil
}

// Grid is a row-major 2-D grid of heights. NaN marks no-data.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// GridFromRows builds a grid from a slice of equal-length rows.
func GridFromRows(rows [][]float64) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrDegenerate
	}
	g := NewGrid(len(rows), len(rows[0]))
	for r, row := range rows {
		if len(row) != g.Cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, r, len(row), g.Cols)
		}
		copy(g.Data[r*g.Cols:], row)
	}
	return g, nil
}

func (g *Grid) Shape() (int, int) { return g.Rows, g.Cols }

// Index returns the flat offset of (r, c).
func (g *Grid) Index(r, c int) int { return r*g.Cols + c }

func (g *Grid) At(r, c int) float64 { return g.Data[g.Index(r, c)] }

func (g *Grid) Set(r, c int, v float64) { g.Data[g.Index(r, c)] = v }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Valid returns the non-NaN values in row-major order.
func (g *Grid) Valid() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// LabelGrid holds segment or marker ids. Zero is background.
type LabelGrid struct {
	Rows int
	Cols int
	Data []int32
}

// NewLabelGrid allocates an all-background label grid.
func NewLabelGrid(rows, cols int) *LabelGrid {
	return &LabelGrid{Rows: rows, Cols: cols, Data: make([]int32, rows*cols)}
}

func (l *LabelGrid) Shape() (int, int) { return l.Rows, l.Cols }

func (l *LabelGrid) At(r, c int) int32 { return l.Data[r*l.Cols+c] }

func (l *LabelGrid) Set(r, c int, v int32) { l.Data[r*l.Cols+c] = v }

// Labels returns the distinct positive labels in ascending order.
func (l *LabelGrid) Labels() []int32 {
	var maxLabel int32
	for _, v := range l.Data {
		if v > maxLabel {
			maxLabel = v
		}
	}
	seen := make([]bool, maxLabel+1)
	for _, v := range l.Data {
		if v > 0 {
			seen[v] = true
		}
	}
	out := make([]int32, 0)
	for id := int32(1); id <= maxLabel; id++ {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// ToGrid converts labels to float heights for GeoTIFF output.
func (l *LabelGrid) ToGrid() *Grid {
	g := NewGrid(l.Rows, l.Cols)
	for i, v := range l.Data {
		g.Data[i] = float64(v)
	}
	return g
}

// Mask is a boolean grid.
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

// NewMask allocates an all-false mask.
func NewMask(rows, cols int) *Mask {
	return &Mask{Rows: rows, Cols: cols, Data: make([]bool, rows*cols)}
}

func (m *Mask) Shape() (int, int) { return m.Rows, m.Cols }

func (m *Mask) At(r, c int) bool { return m.Data[r*m.Cols+c] }

func (m *Mask) Set(r, c int, v bool) { m.Data[r*m.Cols+c] = v }

// Count returns the number of set cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// ToGrid converts the mask to a 0/1 grid.
func (m *Mask) ToGrid() *Grid {
	g := NewGrid(m.Rows, m.Cols)
	for i, v := range m.Data {
		if v {
			g.Data[i] = 1
		}
	}
	return g
}
