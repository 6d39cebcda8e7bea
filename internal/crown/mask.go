package crown

import (
	"math"

	"github.com/banshee-data/treecrown/internal/raster"
)

// ForegroundMask is set wherever the smoothed height is non-zero.
// No-data cells are never foreground.
func ForegroundMask(g *raster.Grid) *raster.Mask {
	m := raster.NewMask(g.Rows, g.Cols)
	for i, v := range g.Data {
		m.Data[i] = v != 0 && !math.IsNaN(v)
	}
	return m
}
