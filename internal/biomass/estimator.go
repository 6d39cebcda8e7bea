package biomass

import (
	"fmt"

	"github.com/banshee-data/treecrown/internal/features"
	"github.com/banshee-data/treecrown/internal/forest"
)

// Estimator predicts above-ground biomass in kilograms from crown features.
type Estimator struct {
	model *forest.Regressor
}

// NewEstimator returns an estimator that fits a forest with cfg.
func NewEstimator(cfg forest.Config) *Estimator {
	return &Estimator{model: forest.NewRegressor(cfg)}
}

// Fit trains on the reference table. Every row must carry exactly
// features.Width inputs.
func (e *Estimator) Fit(table *forest.TrainingTable) error {
	if table == nil || table.Len() == 0 {
		return forest.ErrEmptyTable
	}
	for i, row := range table.Features {
		if len(row) != features.Width {
			return fmt.Errorf("%w: training row %d has %d features, want %d",
				forest.ErrWidthMismatch, i, len(row), features.Width)
		}
	}
	if err := e.model.Fit(table.Features, table.Biomass); err != nil {
		return fmt.Errorf("fit biomass model: %w", err)
	}
	return nil
}

// Estimate returns one prediction per tree, in input order.
func (e *Estimator) Estimate(trees []features.TreeFeatures) ([]float64, error) {
	if len(trees) == 0 {
		return []float64{}, nil
	}
	out, err := e.model.Predict(features.Matrix(trees))
	if err != nil {
		return nil, fmt.Errorf("predict biomass: %w", err)
	}
	return out, nil
}

// Importances maps each feature column to its normalised importance.
// It is nil before Fit.
func (e *Estimator) Importances() map[string]float64 {
	imp := e.model.FeatureImportances()
	if imp == nil {
		return nil
	}
	out := make(map[string]float64, len(imp))
	for i, v := range imp {
		out[features.ColumnNames[i]] = v
	}
	return out
}

// ModelStats describes the fitted forest.
func (e *Estimator) ModelStats() forest.Stats { return e.model.Stats() }
