package pipeline

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/treecrown/internal/features"
	"github.com/banshee-data/treecrown/internal/raster"
)

// OutputPaths lists the files written for one run.
type OutputPaths struct {
	Filtered string `json:"filtered"`
	Maxima   string `json:"maxima"`
	Labels   string `json:"labels"`
	Biomass  string `json:"biomass"`
	Trees    string `json:"trees"`
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPathsFor returns the output file names for stem under dir.
func OutputPathsFor(dir, stem string) OutputPaths {
	return OutputPaths{
		Filtered: filepath.Join(dir, stem+"_filter.tif"),
		Maxima:   filepath.Join(dir, stem+"_maximum.tif"),
		Labels:   filepath.Join(dir, stem+"_labels.tif"),
		Biomass:  filepath.Join(dir, stem+"_biomass.tif"),
		Trees:    filepath.Join(dir, stem+"_trees.csv"),
	}
}

// GeoRef returns the georeference for output rasters. A non-zero
// output EPSG replaces the input projection.
func (r *Runner) GeoRef(meta *raster.Metadata) (raster.GeoRef, error) {
	ref := meta.GeoRef()
	if code := r.Config.GetOutputEPSG(); code != 0 {
		wkt, err := raster.EPSGToWKT(code)
		if err != nil {
			return raster.GeoRef{}, err
		}
		ref.Projection = wkt
	}
	return ref, nil
}

// WriteOutputs writes the smoothed, maxima, label, and biomass rasters
// plus the per-tree CSV into dir.
func (r *Runner) WriteOutputs(res *Result, dir, stem string) (OutputPaths, error) {
	paths := OutputPathsFor(dir, stem)
	if err := r.FS.MkdirAll(dir, 0o755); err != nil {
		return OutputPaths{}, fmt.Errorf("create output dir: %w", err)
	}
	ref, err := r.GeoRef(res.Metadata)
	if err != nil {
		return OutputPaths{}, err
	}
	nodata := r.Config.GetOutputNoData()
	seg := res.Segmentation

	rasters := []struct {
		path string
		grid *raster.Grid
	}{
		{paths.Filtered, res.Smoothed},
		{paths.Maxima, seg.Maxima.ToGrid()},
		{paths.Labels, seg.Labels.ToGrid()},
		{paths.Biomass, res.BiomassGrid},
	}
	for _, out := range rasters {
		if err := raster.Write(out.path, out.grid, ref, nodata); err != nil {
			return OutputPaths{}, err
		}
		r.Logger.Debug().Str("path", out.path).Msg("raster written")
	}

	if err := r.writeTreesCSV(paths.Trees, res); err != nil {
		return OutputPaths{}, err
	}
	r.Logger.Info().Str("dir", dir).Str("stem", stem).Msg("outputs written")
	return paths, nil
}

// TreesHeader is the header row of the per-tree CSV.
func TreesHeader() []string {
	header := make([]string, 0, features.Width+2)
	header = append(header, "label")
	header = append(header, features.ColumnNames[:]...)
	return append(header, "biomass_kg")
}

func (r *Runner) writeTreesCSV(path string, res *Result) error {
	f, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(TreesHeader()); err != nil {
		return err
	}
	for i, t := range res.Trees {
		row := make([]string, 0, features.Width+2)
		row = append(row, strconv.Itoa(int(t.Label)))
		for _, v := range t.Vector() {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, strconv.FormatFloat(res.Biomass[i], 'g', -1, 64))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
