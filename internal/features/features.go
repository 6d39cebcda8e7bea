package features

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/treecrown/internal/raster"
)

// Width is the number of model inputs per tree.
const Width = 11

// ColumnNames lists the model inputs in vector order.
var ColumnNames = [Width]string{
	"area",
	"major_axis_length",
	"max_height",
	"min_height",
	"p50",
	"p60",
	"p70",
	"full_crown",
	"crown50",
	"crown60",
	"crown70",
}

// DefaultPercentiles are the crown-volume cut points.
var DefaultPercentiles = [3]float64{50, 60, 70}

// ErrInvalidPercentile is returned for cut points outside (0, 100] or
// not strictly increasing.
var ErrInvalidPercentile = errors.New("features: percentiles must be increasing and within (0, 100]")

// TreeFeatures describes one segmented crown. Label is carried for
// addressing and is never a model input.
type TreeFeatures struct {
	Label           int32
	Area            float64 // cells
	MajorAxisLength float64 // cells
	MaxHeight       float64
	MinHeight       float64
	Percentiles     [3]float64 // heights at the three cut points
	FullCrown       float64
	Crown           [3]float64 // volumes clipped at each percentile height
}

// Vector returns the model inputs in ColumnNames order.
func (t TreeFeatures) Vector() []float64 {
	return []float64{
		t.Area,
		t.MajorAxisLength,
		t.MaxHeight,
		t.MinHeight,
		t.Percentiles[0],
		t.Percentiles[1],
		t.Percentiles[2],
		t.FullCrown,
		t.Crown[0],
		t.Crown[1],
		t.Crown[2],
	}
}

// Matrix stacks the vectors of trees.
func Matrix(trees []TreeFeatures) [][]float64 {
	out := make([][]float64, len(trees))
	for i, t := range trees {
		out[i] = t.Vector()
	}
	return out
}

// Labels returns the label of each tree in order.
func Labels(trees []TreeFeatures) []int32 {
	out := make([]int32, len(trees))
	for i, t := range trees {
		out[i] = t.Label
	}
	return out
}

func checkPercentiles(p [3]float64) error {
	prev := 0.0
	for _, v := range p {
		if v <= prev || v > 100 {
			return fmt.Errorf("%w: got %v", ErrInvalidPercentile, p)
		}
		prev = v
	}
	return nil
}

type region struct {
	heights []float64
	rows    []float64
	cols    []float64
	area    int
}

// Extract computes features for each positive label of labels, reading
// heights from chm. Rows are returned in ascending label order. No-data
// cells count toward area and shape but not toward height statistics.
func Extract(chm *raster.Grid, labels *raster.LabelGrid, percentiles [3]float64) ([]TreeFeatures, error) {
	if err := raster.CheckShape(chm, labels); err != nil {
		return nil, err
	}
	if err := checkPercentiles(percentiles); err != nil {
		return nil, err
	}

	ids := labels.Labels()
	slot := make(map[int32]int, len(ids))
	regions := make([]region, len(ids))
	for i, id := range ids {
		slot[id] = i
	}
	for r := 0; r < labels.Rows; r++ {
		for c := 0; c < labels.Cols; c++ {
			id := labels.At(r, c)
			if id <= 0 {
				continue
			}
			reg := &regions[slot[id]]
			reg.area++
			reg.rows = append(reg.rows, float64(r))
			reg.cols = append(reg.cols, float64(c))
			if h := chm.At(r, c); !math.IsNaN(h) {
				reg.heights = append(reg.heights, h)
			}
		}
	}

	out := make([]TreeFeatures, len(ids))
	for i, id := range ids {
		out[i] = describe(id, &regions[i], percentiles)
	}
	return out, nil
}

func describe(id int32, reg *region, percentiles [3]float64) TreeFeatures {
	tf := TreeFeatures{
		Label:           id,
		Area:            float64(reg.area),
		MajorAxisLength: MajorAxisLength(reg.rows, reg.cols),
	}
	if len(reg.heights) == 0 {
		return tf
	}

	sorted := slices.Clone(reg.heights)
	slices.Sort(sorted)
	tf.MinHeight = floats.Min(sorted)
	tf.MaxHeight = floats.Max(sorted)
	tf.FullCrown = CrownVolume(reg.heights, tf.MinHeight, math.Inf(1))
	for k, p := range percentiles {
		tf.Percentiles[k] = Percentile(sorted, p)
		tf.Crown[k] = CrownVolume(reg.heights, tf.MinHeight, tf.Percentiles[k])
	}
	return tf
}
