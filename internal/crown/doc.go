// Package crown segments a canopy height model into individual tree crowns.
//
// Responsibilities: Gaussian smoothing with ground re-zeroing, local-maxima
// detection, marker labelling, foreground masking, and marker-controlled
// watershed flooding constrained to the mask.
// Key types: Segmenter, Segmentation, OrphanStats.
//
// Dependency rule: crown depends only on raster. OpenCV (gocv) backs the
// filters and connected-component labelling; the watershed flood is pure Go
// so that its tie-break order is fixed.
package crown
