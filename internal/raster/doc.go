// Package raster owns the in-memory grid model and GeoTIFF I/O.
//
// Responsibilities: float, label, and boolean grids with shape checks,
// single-band GeoTIFF loading with no-data and scale normalisation, and
// Float32 GeoTIFF output that carries the source georeferencing.
// Key types: Grid, LabelGrid, Mask, Metadata, GeoRef.
//
// Dependency rule: raster depends on no other internal package. Image
// processing lives in crown; statistics on segments live in features.
package raster
