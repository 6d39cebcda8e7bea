// Package pipeline runs the biomass workflow end to end.
//
// Responsibilities: loading the CHM and training table, running the
// smoothing, segmentation, feature, and estimation stages in order with
// per-stage timings, writing the GeoTIFF and CSV outputs, and recording
// the run in the inventory database.
// Key types: Runner, Inputs, Result, OutputPaths.
//
// Dependency rule: pipeline is the only package that sees every stage.
// Stages never import each other beyond raster.
package pipeline
