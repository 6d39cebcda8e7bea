package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Percentile interpolates linearly between the closest ranks of sorted,
// placing rank (n-1)·p/100. sorted must be ascending and non-empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := float64(n-1) * p / 100
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// CrownVolume sums each height clipped at cap, less hMin.
func CrownVolume(h []float64, hMin, cap float64) float64 {
	var sum float64
	for _, v := range h {
		sum += math.Min(v, cap) - hMin
	}
	return sum
}

// MajorAxisLength is the major axis of the ellipse with the same second
// central moments as the cell coordinates: 4·sqrt of the largest
// eigenvalue of their population covariance.
func MajorAxisLength(rows, cols []float64) float64 {
	if len(rows) < 2 {
		return 0
	}
	mr := stat.Mean(rows, nil)
	mc := stat.Mean(cols, nil)
	var srr, scc, src float64
	for i := range rows {
		dr, dc := rows[i]-mr, cols[i]-mc
		srr += dr * dr
		scc += dc * dc
		src += dr * dc
	}
	n := float64(len(rows))
	cov := mat.NewSymDense(2, []float64{srr / n, src / n, src / n, scc / n})

	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		return 0
	}
	vals := eig.Values(nil)
	largest := vals[len(vals)-1]
	if largest <= 0 {
		return 0
	}
	return 4 * math.Sqrt(largest)
}
