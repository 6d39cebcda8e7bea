package forest

import (
	"math"
	"math/rand/v2"
	"sort"
)

type node struct {
	feature   int // -1 for leaves
	threshold float64
	left      int
	right     int
	value     float64
}

// Tree is a fitted regression tree stored as a flat node slice.
type Tree struct {
	nodes       []node
	importances []float64 // raw squared-error decrease per feature
}

type treeBuilder struct {
	x           [][]float64
	y           []float64
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand
	tree        *Tree
}

func buildTree(x [][]float64, y []float64, samples []int, cfg Config, rng *rand.Rand) *Tree {
	width := len(x[0])
	b := &treeBuilder{
		x:           x,
		y:           y,
		maxDepth:    cfg.MaxDepth,
		minSplit:    cfg.MinSamplesSplit,
		minLeaf:     cfg.MinSamplesLeaf,
		maxFeatures: cfg.featuresPerSplit(width),
		rng:         rng,
		tree:        &Tree{importances: make([]float64, width)},
	}
	b.grow(samples, 0)
	return b.tree
}

func sse(y []float64, idx []int) (mean, sum float64) {
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))
	for _, i := range idx {
		d := y[i] - mean
		sum += d * d
	}
	return mean, sum
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	mean, impurity := sse(b.y, idx)
	at := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{feature: -1, value: mean})

	if depth >= b.maxDepth || len(idx) < b.minSplit || impurity <= 1e-12 {
		return at
	}
	feature, threshold, gain, ok := b.bestSplit(idx, impurity)
	if !ok {
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.tree.importances[feature] += gain

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.nodes[at] = node{feature: feature, threshold: threshold, left: l, right: r, value: mean}
	return at
}

// bestSplit scans a random subset of features for the threshold that
// minimises the summed squared error of both children. Thresholds sit
// midway between consecutive distinct values.
func (b *treeBuilder) bestSplit(idx []int, impurity float64) (feature int, threshold, gain float64, ok bool) {
	width := len(b.x[0])
	candidates := b.rng.Perm(width)[:b.maxFeatures]

	n := len(idx)
	order := make([]int, n)
	best := math.Inf(1)
	for _, f := range candidates {
		copy(order, idx)
		sort.SliceStable(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })

		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}
		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := b.y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := b.x[order[k]][f], b.x[order[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			if int(nl) < b.minLeaf || int(nr) < b.minLeaf {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			cost := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if cost < best {
				best = cost
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold == hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	if !ok {
		return 0, 0, 0, false
	}
	gain = impurity - best
	if gain < 0 {
		gain = 0
	}
	return feature, threshold, gain, true
}

// Predict walks x down the tree.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.feature < 0 {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(0)
}

// Leaves counts terminal nodes.
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.nodes {
		if n.feature < 0 {
			count++
		}
	}
	return count
}
