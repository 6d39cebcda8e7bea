package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/lukeroth/gdal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	g, err := GridFromRows([][]float64{
		{0, 1.5, 2.25},
		{math.NaN(), 10, 0},
	})
	require.NoError(t, err)

	ref := GeoRef{GeoTransform: [6]float64{315000, 1, 0, 4095000, 0, -1}}
	path := filepath.Join(t.TempDir(), "chm.tif")
	require.NoError(t, Write(path, g, ref, -9999))

	got, meta, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, meta.Rows)
	assert.Equal(t, 3, meta.Cols)
	assert.Equal(t, 1, meta.Bands)
	assert.True(t, meta.HasNoData)
	assert.Equal(t, -9999.0, meta.NoData)
	assert.Equal(t, 1.0, meta.ScaleFactor)
	assert.Equal(t, ref.GeoTransform, meta.GeoTransform)
	assert.Equal(t, Extent{XMin: 315000, XMax: 315003, YMin: 4094998, YMax: 4095000}, meta.Extent)

	require.Len(t, got.Data, len(g.Data))
	for i, want := range g.Data {
		if math.IsNaN(want) {
			assert.True(t, math.IsNaN(got.Data[i]), "cell %d should be no-data", i)
			continue
		}
		assert.InDelta(t, want, got.Data[i], 1e-6, "cell %d", i)
	}
	assert.Equal(t, 10.0, meta.Stats.Max)
}

func TestWriteRejectsDegenerate(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "x.tif"), &Grid{}, GeoRef{}, -9999)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.tif"))
	assert.Error(t, err)
}

// writeRawGTiff writes bands copies of data without going through Write,
// so tests can control band count and scale.
func writeRawGTiff(t *testing.T, path string, rows, cols, bands int, data []float64, scale float64) {
	t.Helper()
	driver, err := gdal.GetDriverByName("GTiff")
	require.NoError(t, err)
	ds := driver.Create(path, cols, rows, bands, gdal.Float32, nil)
	require.NotEqual(t, gdal.Dataset{}, ds)
	defer ds.Close()
	require.NoError(t, ds.SetGeoTransform([6]float64{0, 1, 0, float64(rows), 0, -1}))
	for b := 1; b <= bands; b++ {
		band := ds.RasterBand(b)
		require.NoError(t, band.IO(gdal.Write, 0, 0, cols, rows, data, cols, rows, 0, 0))
		if scale != 0 {
			require.NoError(t, band.SetScale(scale))
		}
	}
}

func TestLoadRejectsMultiBand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgb.tif")
	writeRawGTiff(t, path, 2, 2, 2, []float64{1, 2, 3, 4}, 0)

	_, _, err := Load(path)
	assert.ErrorIs(t, err, ErrMultiBand)
	assert.ErrorContains(t, err, "2 bands")
}

func TestCheckBandCount(t *testing.T) {
	tests := []struct {
		bands int
		want  error
	}{
		{0, ErrNoBands},
		{1, nil},
		{3, ErrMultiBand},
	}
	for _, tt := range tests {
		err := checkBandCount(tt.bands)
		if tt.want == nil {
			assert.NoError(t, err, "bands=%d", tt.bands)
			continue
		}
		assert.ErrorIs(t, err, tt.want, "bands=%d", tt.bands)
	}
}

func TestLoadDividesByScaleFactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaled.tif")
	writeRawGTiff(t, path, 1, 3, 1, []float64{0, 12.5, 30}, 0.5)

	got, meta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, meta.ScaleFactor)
	assert.InDeltaSlice(t, []float64{0, 25, 60}, got.Data, 1e-6)
	assert.InDelta(t, 60, meta.Stats.Max, 1e-6)
}

func TestEPSGToWKT(t *testing.T) {
	wkt, err := EPSGToWKT(32611)
	require.NoError(t, err)
	assert.Contains(t, wkt, "UTM zone 11N")
	assert.Contains(t, wkt, `"32611"`)

	_, err = EPSGToWKT(-1)
	assert.Error(t, err)
}

func TestWriteKeepsProjection(t *testing.T) {
	wkt, err := EPSGToWKT(32611)
	require.NoError(t, err)
	g, err := GridFromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "utm.tif")
	require.NoError(t, Write(path, g, GeoRef{GeoTransform: [6]float64{256000, 1, 0, 4106000, 0, -1}, Projection: wkt}, -9999))

	_, meta, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, meta.Projection, "UTM zone 11N")
}
