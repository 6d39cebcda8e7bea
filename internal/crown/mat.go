package crown

import (
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/treecrown/internal/raster"
)

// gridToMat copies g into a CV_32F matrix. NaN cells take the value fill.
// The caller must Close the returned Mat.
func gridToMat(g *raster.Grid, fill float32) gocv.Mat {
	m := gocv.NewMatWithSize(g.Rows, g.Cols, gocv.MatTypeCV32F)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := g.At(r, c)
			if math.IsNaN(v) {
				m.SetFloatAt(r, c, fill)
				continue
			}
			m.SetFloatAt(r, c, float32(v))
		}
	}
	return m
}

// matToGrid copies a CV_32F matrix into a new grid.
func matToGrid(m gocv.Mat, rows, cols int) *raster.Grid {
	g := raster.NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Set(r, c, float64(m.GetFloatAt(r, c)))
		}
	}
	return g
}

// maskToMat copies m into a CV_8U matrix of zeros and ones.
func maskToMat(m *raster.Mask) gocv.Mat {
	out := gocv.NewMatWithSize(m.Rows, m.Cols, gocv.MatTypeCV8U)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			var v uint8
			if m.At(r, c) {
				v = 1
			}
			out.SetUCharAt(r, c, v)
		}
	}
	return out
}
