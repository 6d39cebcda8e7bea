package crown

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/treecrown/internal/raster"
)

// ErrInvalidWindow is returned for an even or too small neighbourhood.
var ErrInvalidWindow = errors.New("crown: peak window must be odd and at least 3")

// LocalMaxima marks cells equal to the maximum of their window×window
// neighbourhood and strictly above the grid minimum. Cells closer than
// excludeBorder to an edge are never marked. Adjacent cells sharing the
// neighbourhood maximum are all marked; LabelMarkers merges them.
func LocalMaxima(g *raster.Grid, window, excludeBorder int) (*raster.Mask, error) {
	if window < 3 || window%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}
	if excludeBorder < 0 {
		excludeBorder = 0
	}

	floor := math.Inf(1)
	for _, v := range g.Data {
		if !math.IsNaN(v) && v < floor {
			floor = v
		}
	}
	out := raster.NewMask(g.Rows, g.Cols)
	if math.IsInf(floor, 1) {
		return out, nil
	}

	// Compare in float32, the precision the Mat holds.
	floor32 := float32(floor)
	src := gridToMat(g, floor32)
	defer src.Close()
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(window, window))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	if err := gocv.Dilate(src, &dilated, kernel); err != nil {
		return nil, fmt.Errorf("dilate: %w", err)
	}

	for r := excludeBorder; r < g.Rows-excludeBorder; r++ {
		for c := excludeBorder; c < g.Cols-excludeBorder; c++ {
			v := src.GetFloatAt(r, c)
			if v == dilated.GetFloatAt(r, c) && v > floor32 {
				out.Set(r, c, true)
			}
		}
	}
	return out, nil
}
