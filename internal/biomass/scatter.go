package biomass

import (
	"fmt"

	"github.com/banshee-data/treecrown/internal/raster"
)

// Scatter builds a grid where every cell of segment ids[i] holds
// values[i]. Background cells hold nodata. A positive label without a
// value is an error.
func Scatter(labels *raster.LabelGrid, ids []int32, values []float64, nodata float64) (*raster.Grid, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("biomass: %d labels but %d values", len(ids), len(values))
	}
	byLabel := make(map[int32]float64, len(ids))
	for i, id := range ids {
		byLabel[id] = values[i]
	}

	out := raster.NewGrid(labels.Rows, labels.Cols)
	for i, id := range labels.Data {
		if id <= 0 {
			out.Data[i] = nodata
			continue
		}
		v, ok := byLabel[id]
		if !ok {
			return nil, fmt.Errorf("biomass: label %d has no prediction", id)
		}
		out.Data[i] = v
	}
	return out, nil
}
