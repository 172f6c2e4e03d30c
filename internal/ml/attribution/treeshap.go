package attribution

import (
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/tree"
)

// pathElem is one feature on the current root-to-node path together with the
// fraction of "zero" (feature missing) and "one" (feature present) paths
// that flow through it.
type pathElem struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

// TreeValues computes exact path-dependent Shapley values of an ensemble for
// one row. The values plus the ensemble's expected output sum to
// tree.Output(e, row).
func TreeValues(e tree.Ensemble, row []float64) []float64 {
	phi := make([]float64, len(row))
	maxd := tree.MaxDepth(e) + 2
	buf := make([]pathElem, maxd*(maxd+1)/2+1)
	scale := e.Scale()
	for _, t := range e.Trees() {
		if t.NumNodes() == 0 {
			continue
		}
		s := shapWalker{t: t, row: row, phi: phi, scale: scale}
		s.recurse(buf, 0, 0, 1, 1, -1)
	}
	return phi
}

// ExpectedValue is the output of the ensemble averaged over the training
// cover of every tree.
func ExpectedValue(e tree.Ensemble) float64 {
	sum := 0.0
	for _, t := range e.Trees() {
		sum += t.ExpectedValue()
	}
	return e.BaseValue() + e.Scale()*sum
}

type shapWalker struct {
	t     *tree.Tree
	row   []float64
	phi   []float64
	scale float64
}

func (s *shapWalker) recurse(parent []pathElem, node, depth int, zero, one float64, feature int) {
	path := parent[depth+1:]
	copy(path, parent[:depth+1])
	extendPath(path, depth, zero, one, feature)

	t := s.t
	if t.IsLeaf(node) {
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			s.phi[el.feature] += w * (el.one - el.zero) * t.Value[node] * s.scale
		}
		return
	}

	split := t.Feature[node]
	hot, cold := t.Left[node], t.Right[node]
	if s.row[split] > t.Threshold[node] {
		hot, cold = cold, hot
	}
	hotZero, coldZero := 0.5, 0.5
	if cover := t.Cover[node]; cover > 0 {
		hotZero = t.Cover[hot] / cover
		coldZero = t.Cover[cold] / cover
	}

	// A feature split on again deeper in the tree is unwound first so it
	// appears on the path only once.
	inZero, inOne := 1.0, 1.0
	for k := 0; k <= depth; k++ {
		if path[k].feature == split {
			inZero, inOne = path[k].zero, path[k].one
			unwindPath(path, depth, k)
			depth--
			break
		}
	}

	s.recurse(path, hot, depth+1, hotZero*inZero, inOne, split)
	s.recurse(path, cold, depth+1, coldZero*inZero, 0, split)
}

func extendPath(path []pathElem, depth int, zero, one float64, feature int) {
	path[depth] = pathElem{feature: feature, zero: zero, one: one}
	if depth == 0 {
		path[depth].weight = 1
	}
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / d
		path[i].weight = zero * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElem, depth, index int) {
	one, zero := path[index].one, path[index].zero
	next := path[depth].weight
	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}
	for i := index; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
}

// unwoundPathSum is the total weight of the path with element index removed.
func unwoundPathSum(path []pathElem, depth, index int) float64 {
	one, zero := path[index].one, path[index].zero
	next := path[depth].weight
	total := 0.0
	if one != 0 {
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)
		}
	} else {
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(depth-i))
		}
	}
	return total * float64(depth+1)
}
