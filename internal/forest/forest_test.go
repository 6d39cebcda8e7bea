package forest

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData has a target that jumps at x0 = 10 while x1 is constant.
func stepData() ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		x = append(x, []float64{float64(i), 3})
		if i < 10 {
			y = append(y, 0)
		} else {
			y = append(y, 10)
		}
	}
	return x, y
}

func TestSingleTreeFitsStep(t *testing.T) {
	x, y := stepData()
	cfg := DefaultConfig()
	cfg.Trees = 1
	cfg.Bootstrap = false

	r := NewRegressor(cfg)
	require.NoError(t, r.Fit(x, y))

	got, err := r.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, y, got)
	assert.Equal(t, 1, r.Trees()[0].Depth())
	assert.Equal(t, 2, r.Trees()[0].Leaves())
	assert.Equal(t, 0.0, r.PredictOne([]float64{9.4, 3}))
	assert.Equal(t, 10.0, r.PredictOne([]float64{9.6, 3}))
}

func TestRegressorStats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trees = 1
	cfg.Bootstrap = false
	r := NewRegressor(cfg)
	assert.Equal(t, Stats{}, r.Stats())

	x, y := stepData()
	require.NoError(t, r.Fit(x, y))
	assert.Equal(t, Stats{Trees: 1, Width: 2, MaxDepth: 1, MeanDepth: 1, Leaves: 2}, r.Stats())

	cfg.Trees = 5
	cfg.MaxDepth = 3
	r = NewRegressor(cfg)
	require.NoError(t, r.Fit(x, y))
	st := r.Stats()
	assert.Equal(t, 5, st.Trees)
	assert.LessOrEqual(t, st.MaxDepth, 3)
	assert.LessOrEqual(t, st.MeanDepth, float64(st.MaxDepth))
	assert.GreaterOrEqual(t, st.Leaves, st.Trees)
}

func TestFeatureImportances(t *testing.T) {
	x, y := stepData()
	r := NewRegressor(DefaultConfig())
	assert.Nil(t, r.FeatureImportances())

	require.NoError(t, r.Fit(x, y))
	imp := r.FeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0], 1e-9)
	assert.InDelta(t, 0.0, imp[1], 1e-9)
}

func randomData(n, width int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		row := make([]float64, width)
		for j := range row {
			row[j] = rng.Float64() * 20
		}
		x[i] = row
		y[i] = 3*row[0] + row[2]*row[2]/4 + rng.NormFloat64()
	}
	return x, y
}

func TestFitIsDeterministic(t *testing.T) {
	x, y := randomData(60, 11, 7)
	cfg := DefaultConfig()
	cfg.Trees = 15
	cfg.MaxFeatures = 4

	a := NewRegressor(cfg)
	b := NewRegressor(cfg)
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	pa, err := a.Predict(x)
	require.NoError(t, err)
	pb, err := b.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
}

func TestForestPredictionsStayInTargetRange(t *testing.T) {
	x, y := randomData(80, 5, 11)
	r := NewRegressor(Config{Trees: 20, MaxDepth: 6, MinSamplesSplit: 2, MinSamplesLeaf: 1, Bootstrap: true, Seed: 2})
	require.NoError(t, r.Fit(x, y))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range y {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	got, err := r.Predict(x)
	require.NoError(t, err)
	for _, v := range got {
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
	}
	for _, tree := range r.Trees() {
		assert.LessOrEqual(t, tree.Depth(), 6)
	}
}

func TestPredictErrors(t *testing.T) {
	r := NewRegressor(DefaultConfig())
	_, err := r.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrNotFitted)

	x, y := stepData()
	require.NoError(t, r.Fit(x, y))
	assert.Equal(t, 2, r.Width())
	_, err = r.Predict([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestFitErrors(t *testing.T) {
	r := NewRegressor(DefaultConfig())
	assert.ErrorIs(t, r.Fit(nil, nil), ErrEmptyTable)
	assert.ErrorIs(t, r.Fit([][]float64{{1, 2}, {1}}, []float64{1, 2}), ErrWidthMismatch)
	assert.Error(t, r.Fit([][]float64{{1}}, []float64{1, 2}))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no trees", func(c *Config) { c.Trees = 0 }},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }},
		{"split below two", func(c *Config) { c.MinSamplesSplit = 1 }},
		{"empty leaf", func(c *Config) { c.MinSamplesLeaf = 0 }},
		{"negative features", func(c *Config) { c.MaxFeatures = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
