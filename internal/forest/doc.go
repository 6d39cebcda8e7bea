// Package forest implements a bagged random-forest regressor.
//
// Responsibilities: CART regression trees with squared-error splits,
// bootstrap aggregation with a seeded PCG source, impurity-based feature
// importances, and loading the headerless training table.
// Key types: Regressor, Config, Tree, TrainingTable.
//
// Dependency rule: forest knows nothing about rasters or crowns. It sees
// only feature matrices.
package forest
