package crown

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/treecrown/internal/raster"
)

// ErrInvalidKernel is returned for a non-positive sigma or truncate.
var ErrInvalidKernel = errors.New("crown: gaussian sigma and truncate must be positive")

// KernelRadius is the half-width of a Gaussian kernel truncated at
// truncate standard deviations.
func KernelRadius(sigma, truncate float64) int {
	return int(truncate*sigma + 0.5)
}

// Smooth applies an isotropic Gaussian blur with zero padding. Cells that
// were ground (zero) or no-data before the blur are zero afterwards.
func Smooth(g *raster.Grid, sigma, truncate float64) (*raster.Grid, error) {
	if sigma <= 0 || truncate <= 0 {
		return nil, fmt.Errorf("%w: sigma=%g truncate=%g", ErrInvalidKernel, sigma, truncate)
	}
	if g.Rows == 0 || g.Cols == 0 {
		return nil, raster.ErrDegenerate
	}

	src := gridToMat(g, 0)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	if err := gaussianBlur(src, &dst, 2*KernelRadius(sigma, truncate)+1, sigma); err != nil {
		return nil, err
	}

	out := matToGrid(dst, g.Rows, g.Cols)
	for i, v := range g.Data {
		if v == 0 || math.IsNaN(v) {
			out.Data[i] = 0
		}
	}
	return out, nil
}

// gaussianBlur runs a k×k blur with zero padding outside the Mat.
func gaussianBlur(src gocv.Mat, dst *gocv.Mat, k int, sigma float64) error {
	if err := gocv.GaussianBlur(src, dst, image.Pt(k, k), sigma, sigma, gocv.BorderConstant); err != nil {
		return fmt.Errorf("gaussian blur %dx%d: %w", k, k, err)
	}
	return nil
}
