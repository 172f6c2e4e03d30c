// Package tree holds the binary decision tree shared by the forest and
// boosted backends. Trees are stored as flat node arrays so attribution can
// walk them without knowing which learner produced them.
package tree

import "math"

// Leaf marks a node without children in Tree.Feature.
const Leaf = -1

// Tree is an array-encoded binary tree. Node 0 is the root. A row goes left
// when row[Feature[n]] <= Threshold[n].
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	// Value is the node output: positive-class fraction for classification
	// trees, scaled leaf weight for boosted trees.
	Value []float64
	// Cover is the number of training rows that reached the node.
	Cover []float64
}

// Ensemble is a sum of trees. The model output is
// BaseValue() + Scale() * sum(tree.Predict(row)).
type Ensemble interface {
	Trees() []*Tree
	Scale() float64
	BaseValue() float64
}

func (t *Tree) NumNodes() int {
	return len(t.Feature)
}

func (t *Tree) IsLeaf(n int) bool {
	return t.Feature[n] == Leaf
}

// LeafIndex returns the leaf reached by row.
func (t *Tree) LeafIndex(row []float64) int {
	n := 0
	for !t.IsLeaf(n) {
		if row[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return n
}

func (t *Tree) Predict(row []float64) float64 {
	if t.NumNodes() == 0 {
		return 0
	}
	return t.Value[t.LeafIndex(row)]
}

// Depth is the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if t.NumNodes() == 0 {
		return 0
	}
	return t.depth(0)
}

func (t *Tree) depth(n int) int {
	if t.IsLeaf(n) {
		return 0
	}
	return 1 + max(t.depth(t.Left[n]), t.depth(t.Right[n]))
}

// ExpectedValue is the cover-weighted mean leaf output.
func (t *Tree) ExpectedValue() float64 {
	if t.NumNodes() == 0 {
		return 0
	}
	return t.expected(0)
}

func (t *Tree) expected(n int) float64 {
	if t.IsLeaf(n) {
		return t.Value[n]
	}
	l, r := t.Left[n], t.Right[n]
	total := t.Cover[l] + t.Cover[r]
	if total <= 0 {
		return 0.5 * (t.expected(l) + t.expected(r))
	}
	return (t.Cover[l]*t.expected(l) + t.Cover[r]*t.expected(r)) / total
}

// Output evaluates an ensemble on one row.
func Output(e Ensemble, row []float64) float64 {
	sum := 0.0
	for _, t := range e.Trees() {
		sum += t.Predict(row)
	}
	return e.BaseValue() + e.Scale()*sum
}

// MaxDepth is the deepest tree in the ensemble.
func MaxDepth(e Ensemble) int {
	d := 0
	for _, t := range e.Trees() {
		d = max(d, t.Depth())
	}
	return d
}

// AddNode appends a leaf and returns its index.
func (t *Tree) AddNode(value, cover float64) int {
	t.Feature = append(t.Feature, Leaf)
	t.Threshold = append(t.Threshold, math.NaN())
	t.Left = append(t.Left, Leaf)
	t.Right = append(t.Right, Leaf)
	t.Value = append(t.Value, value)
	t.Cover = append(t.Cover, cover)
	return len(t.Feature) - 1
}

// SetSplit turns node n into a split on feature.
func (t *Tree) SetSplit(n, feature int, threshold float64, left, right int) {
	t.Feature[n] = feature
	t.Threshold[n] = threshold
	t.Left[n] = left
	t.Right[n] = right
}
