package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridFromRows(t *testing.T) {
	g, err := GridFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	rows, cols := g.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 6.0, g.At(1, 2))
	assert.Equal(t, 4, g.Index(1, 1))

	_, err = GridFromRows([][]float64{{1, 2}, {3}})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = GridFromRows(nil)
	assert.True(t, errors.Is(err, ErrDegenerate))
}

func TestCheckShape(t *testing.T) {
	tests := []struct {
		name string
		a, b Shaper
		ok   bool
	}{
		{"grid vs mask", NewGrid(3, 4), NewMask(3, 4), true},
		{"grid vs labels", NewGrid(3, 4), NewLabelGrid(3, 4), true},
		{"rows differ", NewGrid(3, 4), NewGrid(4, 4), false},
		{"cols differ", NewMask(3, 4), NewLabelGrid(3, 5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckShape(tt.a, tt.b)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrShapeMismatch)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewGrid(2, 2)
	g.Set(0, 0, 5)
	c := g.Clone()
	c.Set(0, 0, 7)
	assert.Equal(t, 5.0, g.At(0, 0))
	assert.Equal(t, 7.0, c.At(0, 0))
}

func TestValidSkipsNaN(t *testing.T) {
	g, err := GridFromRows([][]float64{{1, math.NaN()}, {0, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 3}, g.Valid())
}

func TestLabelGridLabels(t *testing.T) {
	l := NewLabelGrid(2, 3)
	l.Set(0, 0, 4)
	l.Set(0, 1, 2)
	l.Set(1, 2, 4)
	assert.Equal(t, []int32{2, 4}, l.Labels())

	g := l.ToGrid()
	assert.Equal(t, 4.0, g.At(1, 2))
	assert.Equal(t, 0.0, g.At(1, 0))

	assert.Empty(t, NewLabelGrid(2, 2).Labels())
}

func TestMaskCountAndGrid(t *testing.T) {
	m := NewMask(2, 2)
	m.Set(0, 1, true)
	m.Set(1, 1, true)
	assert.Equal(t, 2, m.Count())
	assert.Equal(t, []float64{0, 1, 0, 1}, m.ToGrid().Data)
}

func TestExtentFrom(t *testing.T) {
	gt := [6]float64{500000, 1, 0, 4100000, 0, -1}
	ext := ExtentFrom(gt, 100, 200)
	assert.Equal(t, Extent{XMin: 500000, XMax: 500200, YMin: 4099900, YMax: 4100000}, ext)

	meta := &Metadata{PixelWidth: 2, PixelHeight: -0.5}
	assert.Equal(t, 1.0, meta.CellArea())
}

func TestComputeStats(t *testing.T) {
	g, err := GridFromRows([][]float64{{1, 2}, {3, math.NaN()}})
	require.NoError(t, err)
	s := ComputeStats(g)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, 2.0, s.Mean)
	assert.Equal(t, 0.82, s.StdDev)

	assert.Equal(t, BandStats{}, ComputeStats(NewGrid(1, 1).withAll(math.NaN())))
}

func (g *Grid) withAll(v float64) *Grid {
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}
