package biomass

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates per-tree predictions.
type Summary struct {
	Count  int
	Sum    float64
	Mean   float64
	StdDev float64 // population
	Min    float64
	Max    float64
}

// Summarize computes the summary of values. An empty input gives a zero
// Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count:  len(values),
		Sum:    floats.Sum(values),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
