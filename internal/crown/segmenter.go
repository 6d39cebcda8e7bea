package crown

import (
	"github.com/banshee-data/treecrown/internal/raster"
)

// Segmenter holds the crown detection parameters.
type Segmenter struct {
	Window        int // local-maxima neighbourhood, cells per side
	ExcludeBorder int // cells at the edge never seed a crown
	Connectivity  int // 4 or 8
}

// OrphanStats counts mask cells that no marker flood reached.
type OrphanStats struct {
	Cells      int
	Components int
}

// Segmentation carries every grid derived while segmenting.
type Segmentation struct {
	Maxima      *raster.Mask
	Markers     *raster.LabelGrid
	MarkerCount int
	Mask        *raster.Mask
	Labels      *raster.LabelGrid
	Segments    int
	Orphans     OrphanStats
}

// Segment runs maxima detection, marker labelling, masking and the
// watershed over a smoothed CHM.
func (s Segmenter) Segment(smoothed *raster.Grid) (*Segmentation, error) {
	if err := checkConnectivity(s.Connectivity); err != nil {
		return nil, err
	}
	maxima, err := LocalMaxima(smoothed, s.Window, s.ExcludeBorder)
	if err != nil {
		return nil, err
	}
	markers, markerCount, err := LabelMarkers(maxima, s.Connectivity)
	if err != nil {
		return nil, err
	}
	mask := ForegroundMask(smoothed)
	labels, err := Watershed(smoothed, markers, mask, s.Connectivity)
	if err != nil {
		return nil, err
	}
	orphans, err := countOrphans(mask, labels, s.Connectivity)
	if err != nil {
		return nil, err
	}
	return &Segmentation{
		Maxima:      maxima,
		Markers:     markers,
		MarkerCount: markerCount,
		Mask:        mask,
		Labels:      labels,
		Segments:    len(labels.Labels()),
		Orphans:     orphans,
	}, nil
}

func countOrphans(mask *raster.Mask, labels *raster.LabelGrid, conn int) (OrphanStats, error) {
	orphan := raster.NewMask(mask.Rows, mask.Cols)
	for i, in := range mask.Data {
		orphan.Data[i] = in && labels.Data[i] == 0
	}
	cells := orphan.Count()
	if cells == 0 {
		return OrphanStats{}, nil
	}
	_, components, err := LabelMarkers(orphan, conn)
	if err != nil {
		return OrphanStats{}, err
	}
	return OrphanStats{Cells: cells, Components: components}, nil
}
