package crown

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/banshee-data/treecrown/internal/raster"
)

// ErrInvalidConnectivity is returned for connectivity other than 4 or 8.
var ErrInvalidConnectivity = errors.New("crown: connectivity must be 4 or 8")

func checkConnectivity(conn int) error {
	if conn != 4 && conn != 8 {
		return fmt.Errorf("%w: got %d", ErrInvalidConnectivity, conn)
	}
	return nil
}

// LabelMarkers gives each connected group of set cells a unique positive
// id, numbered in raster scan order. It returns the labels and the number
// of groups.
func LabelMarkers(m *raster.Mask, connectivity int) (*raster.LabelGrid, int, error) {
	if err := checkConnectivity(connectivity); err != nil {
		return nil, 0, err
	}
	out := raster.NewLabelGrid(m.Rows, m.Cols)
	if m.Count() == 0 {
		return out, 0, nil
	}

	src := maskToMat(m)
	defer src.Close()
	labels := gocv.NewMat()
	defer labels.Close()

	n := gocv.ConnectedComponentsWithParams(src, &labels, connectivity, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Set(r, c, labels.GetIntAt(r, c))
		}
	}
	// n counts the background component.
	return out, n - 1, nil
}
