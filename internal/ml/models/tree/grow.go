package tree

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

// ClassifierOptions controls CART growth with gini impurity.
type ClassifierOptions struct {
	// MaxDepth of 0 grows until leaves are pure or too small.
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of candidate features per split; 0 means all.
	MaxFeatures int
}

// GrowClassifier fits a gini tree on the rows listed in samples. Duplicated
// indices (bootstrap draws) count once per occurrence.
func GrowClassifier(x [][]float64, y []float64, samples []int, opts ClassifierOptions, rng *rand.Rand) *Tree {
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	b := &classBuilder{x: x, y: y, opts: opts, rng: rng, t: &Tree{}}
	if len(samples) > 0 {
		b.grow(append([]int(nil), samples...), 0)
	}
	return b.t
}

type classBuilder struct {
	x    [][]float64
	y    []float64
	opts ClassifierOptions
	rng  *rand.Rand
	t    *Tree
}

func (b *classBuilder) grow(samples []int, depth int) int {
	n := len(samples)
	pos := 0.0
	for _, i := range samples {
		pos += b.y[i]
	}
	node := b.t.AddNode(pos/float64(n), float64(n))

	if n < b.opts.MinSamplesSplit || pos == 0 || pos == float64(n) {
		return node
	}
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return node
	}
	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return node
	}
	left, right := partition(b.x, samples, feature, threshold)
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.t.SetSplit(node, feature, threshold, l, r)
	return node
}

// bestSplit keeps drawing features past MaxFeatures until one admits a
// valid partition.
func (b *classBuilder) bestSplit(samples []int) (int, float64, bool) {
	p := len(b.x[samples[0]])
	limit := b.opts.MaxFeatures
	if limit <= 0 || limit > p {
		limit = p
	}
	order := b.rng.Perm(p)

	n := len(samples)
	sorted := make([]int, n)
	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	for visited, f := range order {
		if visited >= limit && bestFeature >= 0 {
			break
		}
		copy(sorted, samples)
		sortByFeature(b.x, sorted, f)

		total := 0.0
		for _, i := range sorted {
			total += b.y[i]
		}
		leftPos := 0.0
		for k := 0; k < n-1; k++ {
			leftPos += b.y[sorted[k]]
			lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < b.opts.MinSamplesLeaf || nr < b.opts.MinSamplesLeaf {
				continue
			}
			score := gini(leftPos, float64(nl)) + gini(total-leftPos, float64(nr))
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = midpoint(lo, hi)
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// gini is the count-weighted gini impurity of a node.
func gini(pos, n float64) float64 {
	if n == 0 {
		return 0
	}
	return 2 * pos * (n - pos) / n
}

func sortByFeature(x [][]float64, idx []int, f int) {
	slices.SortFunc(idx, func(a, b int) int {
		return cmp.Compare(x[a][f], x[b][f])
	})
}

// midpoint falls back to lo when rounding would send hi to the left side.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

func partition(x [][]float64, samples []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range samples {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
