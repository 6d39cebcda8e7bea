// Package features computes per-crown descriptors from a labelled CHM.
//
// Each positive label yields one TreeFeatures row. The vector order is the
// column order of the biomass training table and must not change.
package features
