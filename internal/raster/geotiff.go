package raster

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/lukeroth/gdal"
)

var (
	// ErrNoBands is returned for a dataset without raster bands.
	ErrNoBands = errors.New("raster: dataset has no bands")

	// ErrMultiBand is returned for datasets with more than one band.
	ErrMultiBand = errors.New("raster: only single-band rasters are supported")
)

// Load reads a single-band raster. No-data cells become NaN and the
// remaining values are divided by the band scale factor.
func Load(path string) (*Grid, *Metadata, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer ds.Close()

	bands := ds.RasterCount()
	if err := checkBandCount(bands); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	cols, rows := ds.RasterXSize(), ds.RasterYSize()
	if rows <= 0 || cols <= 0 {
		return nil, nil, fmt.Errorf("%s is %dx%d: %w", path, rows, cols, ErrDegenerate)
	}

	band := ds.RasterBand(1)
	g := NewGrid(rows, cols)
	if err := band.IO(gdal.Read, 0, 0, cols, rows, g.Data, cols, rows, 0, 0); err != nil {
		return nil, nil, fmt.Errorf("read band 1 of %s: %w", path, err)
	}

	nodata, hasNoData := band.NoDataValue()
	scale, ok := band.GetScale()
	if !ok || scale == 0 {
		scale = 1
	}
	for i, v := range g.Data {
		if hasNoData && (v == nodata || float32(v) == float32(nodata)) {
			g.Data[i] = math.NaN()
			continue
		}
		g.Data[i] = v / scale
	}

	gt := ds.GeoTransform()
	meta := &Metadata{
		Path:         path,
		Driver:       ds.Driver().ShortName(),
		Rows:         rows,
		Cols:         cols,
		Bands:        bands,
		PixelWidth:   gt[1],
		PixelHeight:  gt[5],
		GeoTransform: gt,
		Extent:       ExtentFrom(gt, rows, cols),
		Projection:   ds.Projection(),
		NoData:       nodata,
		HasNoData:    hasNoData,
		ScaleFactor:  scale,
		Stats:        ComputeStats(g),
	}
	return g, meta, nil
}

func checkBandCount(n int) error {
	switch {
	case n == 0:
		return ErrNoBands
	case n > 1:
		return fmt.Errorf("%d bands: %w", n, ErrMultiBand)
	}
	return nil
}

// Write stores g as a single-band Float32 GeoTIFF. NaN cells are written
// as nodata, which is also recorded as the band's no-data value.
func Write(path string, g *Grid, ref GeoRef, nodata float64) error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return ErrDegenerate
	}
	driver, err := gdal.GetDriverByName("GTiff")
	if err != nil {
		return fmt.Errorf("load GTiff driver: %w", err)
	}
	ds := driver.Create(path, g.Cols, g.Rows, 1, gdal.Float32, nil)
	if reflect.DeepEqual(ds, gdal.Dataset{}) {
		return fmt.Errorf("create raster %s", path)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(ref.GeoTransform); err != nil {
		return fmt.Errorf("set geotransform on %s: %w", path, err)
	}
	if ref.Projection != "" {
		if err := ds.SetProjection(ref.Projection); err != nil {
			return fmt.Errorf("set projection on %s: %w", path, err)
		}
	}

	band := ds.RasterBand(1)
	if err := band.SetNoDataValue(nodata); err != nil {
		return fmt.Errorf("set no-data on %s: %w", path, err)
	}
	buf := make([]float64, len(g.Data))
	for i, v := range g.Data {
		if math.IsNaN(v) {
			v = nodata
		}
		buf[i] = v
	}
	if err := band.IO(gdal.Write, 0, 0, g.Cols, g.Rows, buf, g.Cols, g.Rows, 0, 0); err != nil {
		return fmt.Errorf("write band of %s: %w", path, err)
	}
	return nil
}

// EPSGToWKT resolves an EPSG code into a WKT projection string.
func EPSGToWKT(code int) (string, error) {
	sr := gdal.CreateSpatialReference("")
	defer sr.Destroy()
	if err := sr.FromEPSG(code); err != nil {
		return "", fmt.Errorf("resolve EPSG:%d: %w", code, err)
	}
	wkt, err := sr.ToWKT()
	if err != nil {
		return "", fmt.Errorf("export EPSG:%d as WKT: %w", code, err)
	}
	return wkt, nil
}
