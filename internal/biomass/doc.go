// Package biomass turns crown features into per-tree biomass.
//
// Responsibilities: fitting the forest on the reference table, predicting
// one value per crown, scattering predictions back onto the label grid,
// and summarising the totals.
// Key types: Estimator, Summary.
package biomass
