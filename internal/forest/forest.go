package forest

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrWidthMismatch is returned when a row does not have the feature
	// count the model was configured or fitted for.
	ErrWidthMismatch = errors.New("forest: feature width mismatch")

	// ErrEmptyTable is returned when fitting on no rows.
	ErrEmptyTable = errors.New("forest: training table is empty")

	// ErrNotFitted is returned when predicting before Fit.
	ErrNotFitted = errors.New("forest: regressor has not been fitted")
)

// Config holds the forest hyperparameters.
type Config struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features tried per split; 0 means all
	Bootstrap       bool
	Seed            uint64
}

// DefaultConfig returns the hyperparameters used by the biomass model.
func DefaultConfig() Config {
	return Config{
		Trees:           100,
		MaxDepth:        30,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Bootstrap:       true,
		Seed:            2,
	}
}

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	if c.Trees < 1 {
		return fmt.Errorf("forest: trees must be at least 1, got %d", c.Trees)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("forest: max depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("forest: min samples split must be at least 2, got %d", c.MinSamplesSplit)
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("forest: min samples leaf must be at least 1, got %d", c.MinSamplesLeaf)
	}
	if c.MaxFeatures < 0 {
		return fmt.Errorf("forest: max features must be non-negative, got %d", c.MaxFeatures)
	}
	return nil
}

func (c Config) featuresPerSplit(width int) int {
	if c.MaxFeatures <= 0 || c.MaxFeatures > width {
		return width
	}
	return c.MaxFeatures
}

// Regressor is a random forest of regression trees.
type Regressor struct {
	cfg         Config
	width       int
	trees       []*Tree
	importances []float64
}

// NewRegressor returns an unfitted forest.
func NewRegressor(cfg Config) *Regressor {
	return &Regressor{cfg: cfg}
}

// Fit grows the forest on rows x with targets y. Repeated fits with the
// same seed and data produce identical forests.
func (r *Regressor) Fit(x [][]float64, y []float64) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	if len(x) == 0 {
		return ErrEmptyTable
	}
	if len(x) != len(y) {
		return fmt.Errorf("forest: %d rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("%w: rows have no features", ErrWidthMismatch)
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrWidthMismatch, i, len(row), width)
		}
	}

	src := rand.New(rand.NewPCG(r.cfg.Seed, r.cfg.Seed^0x9e3779b97f4a7c15))
	n := len(x)
	trees := make([]*Tree, r.cfg.Trees)
	for t := range trees {
		rng := rand.New(rand.NewPCG(src.Uint64(), src.Uint64()))
		samples := make([]int, n)
		for i := range samples {
			if r.cfg.Bootstrap {
				samples[i] = rng.IntN(n)
			} else {
				samples[i] = i
			}
		}
		trees[t] = buildTree(x, y, samples, r.cfg, rng)
	}

	r.width = width
	r.trees = trees
	r.importances = aggregateImportances(trees, width)
	return nil
}

// aggregateImportances normalises each tree's impurity decrease, averages
// across trees, and renormalises to sum to one.
func aggregateImportances(trees []*Tree, width int) []float64 {
	out := make([]float64, width)
	for _, t := range trees {
		total := floats.Sum(t.importances)
		if total <= 0 {
			continue
		}
		for i, v := range t.importances {
			out[i] += v / total
		}
	}
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// Width is the feature count seen at fit time.
func (r *Regressor) Width() int { return r.width }

// Trees returns the fitted trees.
func (r *Regressor) Trees() []*Tree { return r.trees }

// Stats describes the shape of a fitted forest.
type Stats struct {
	Trees     int
	Width     int
	MaxDepth  int
	MeanDepth float64
	Leaves    int
}

// Stats summarises tree depth and size. It is zero before Fit.
func (r *Regressor) Stats() Stats {
	st := Stats{Trees: len(r.Trees()), Width: r.Width()}
	if st.Trees == 0 {
		return st
	}
	total := 0
	for _, t := range r.Trees() {
		d := t.Depth()
		total += d
		st.MaxDepth = max(st.MaxDepth, d)
		st.Leaves += t.Leaves()
	}
	st.MeanDepth = float64(total) / float64(st.Trees)
	return st
}

// FeatureImportances returns the normalised impurity decrease per feature,
// or nil before Fit.
func (r *Regressor) FeatureImportances() []float64 {
	if r.importances == nil {
		return nil
	}
	out := make([]float64, len(r.importances))
	copy(out, r.importances)
	return out
}

// PredictOne averages the tree predictions for x. It panics if the
// regressor is unfitted or x has the wrong width; use Predict for checked
// input.
func (r *Regressor) PredictOne(x []float64) float64 {
	votes := make([]float64, len(r.trees))
	for i, t := range r.trees {
		votes[i] = t.Predict(x)
	}
	return stat.Mean(votes, nil)
}

// Predict returns one prediction per row of x.
func (r *Regressor) Predict(x [][]float64) ([]float64, error) {
	if len(r.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != r.width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrWidthMismatch, i, len(row), r.width)
		}
		out[i] = r.PredictOne(row)
	}
	return out, nil
}
