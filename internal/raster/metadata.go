package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// Extent is the bounding box of a raster in map units.
type Extent struct {
	XMin float64
	XMax float64
	YMin float64
	YMax float64
}

// BandStats summarises the valid cells of a band, rounded to centimetres.
type BandStats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// GeoRef is the spatial reference written alongside an output grid.
type GeoRef struct {
	GeoTransform [6]float64
	Projection   string // WKT
}

// Metadata describes a loaded raster.
type Metadata struct {
	Path         string
	Driver       string
	Rows         int
	Cols         int
	Bands        int
	PixelWidth   float64
	PixelHeight  float64
	GeoTransform [6]float64
	Extent       Extent
	Projection   string
	NoData       float64
	HasNoData    bool
	ScaleFactor  float64
	Stats        BandStats
}

// ExtentFrom derives the bounding box from an affine geotransform.
// Rotation terms are ignored, as for north-up rasters.
func ExtentFrom(gt [6]float64, rows, cols int) Extent {
	x0 := gt[0]
	x1 := gt[0] + float64(cols)*gt[1]
	y0 := gt[3]
	y1 := gt[3] + float64(rows)*gt[5]
	return Extent{
		XMin: math.Min(x0, x1),
		XMax: math.Max(x0, x1),
		YMin: math.Min(y0, y1),
		YMax: math.Max(y0, y1),
	}
}

// GeoRef returns the reference needed to write outputs aligned with
// this raster.
func (m *Metadata) GeoRef() GeoRef {
	return GeoRef{GeoTransform: m.GeoTransform, Projection: m.Projection}
}

// CellArea is the ground area of one pixel in squared map units.
func (m *Metadata) CellArea() float64 {
	return math.Abs(m.PixelWidth * m.PixelHeight)
}

// ComputeStats summarises the non-NaN cells of g. A grid with no valid
// cells yields zero stats.
func ComputeStats(g *Grid) BandStats {
	vals := g.Valid()
	if len(vals) == 0 {
		return BandStats{}
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	return BandStats{
		Min:    scalar.Round(floats.Min(vals), 2),
		Max:    scalar.Round(floats.Max(vals), 2),
		Mean:   scalar.Round(mean, 2),
		StdDev: scalar.Round(std, 2),
	}
}
