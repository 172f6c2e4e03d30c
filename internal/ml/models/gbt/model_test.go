package gbt

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestFitLearnsSignal(t *testing.T) {
	x, y := synthetic(200, 21)
	m := New(TrainOptions{Rounds: 60, MaxDepth: 3, LearningRate: 0.2, Subsample: 0.9, ColSample: 1, Lambda: 1, MinChildWeight: 1})
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	// One tree per class per round.
	if len(m.Trees()) != 120 {
		t.Fatalf("expected 120 trees, got %d", len(m.Trees()))
	}
	correct := 0
	for i, p := range m.Predict(x) {
		if p == y[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(y)); acc < 0.85 {
		t.Fatalf("expected training accuracy >= 0.85, got %.3f", acc)
	}
	for _, tr := range m.Trees() {
		if tr.Depth() > 3 {
			t.Fatalf("tree depth %d exceeds limit", tr.Depth())
		}
	}
}

func TestProbaMatchesBooster(t *testing.T) {
	x, y := synthetic(120, 4)
	m := New(TrainOptions{Rounds: 25, MaxDepth: 4, LearningRate: 0.1})
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	pos := slices.Index(m.booster.ClassLabels(), 1)
	if pos < 0 {
		t.Fatalf("positive class missing from %v", m.booster.ClassLabels())
	}
	test, _ := synthetic(30, 5)
	probs := m.PredictProba(test)
	for i, row := range test {
		want := m.booster.PredictSingle(row)[pos]
		if math.Abs(probs[i]-want) > 1e-9 {
			t.Fatalf("row %d: proba %v, booster %v", i, probs[i], want)
		}
	}
}

func TestMarginIsSumOfTrees(t *testing.T) {
	x, y := synthetic(50, 4)
	m := New(TrainOptions{Rounds: 10})
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if m.BaseValue() != 0 || m.Scale() != 1 {
		t.Fatalf("unexpected base %v scale %v", m.BaseValue(), m.Scale())
	}
	for _, row := range x {
		sum := 0.0
		for _, tr := range m.Trees() {
			sum += tr.Predict(row)
		}
		if math.Abs(sum-m.Margin(row)) > 1e-9 {
			t.Fatalf("margin %v, want %v", m.Margin(row), sum)
		}
	}
}

func TestDecodeTrees(t *testing.T) {
	dump := `{"LearningRate":0.5,"ClassLabels":[0,1],"ProbTransformName":"softmax","BaseScore":0.5}
ROUND 0
CLASS 0, label: 0
{"Id":1,"Nsamples":4,"SplitFeatureIndex":0,"Leaf":false,"Threshold":1.5,"Leftid":2,"Rightid":3,"Value":0}
{"Id":2,"Nsamples":3,"Leaf":true,"Value":0.4}
{"Id":3,"Nsamples":1,"Leaf":true,"Value":-0.2}
CLASS 1, label: 1
{"Id":1,"Nsamples":4,"Leaf":true,"Value":0.6}
`
	trees, err := decodeTrees(dump, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(trees) != 2 {
		t.Fatalf("expected 2 trees, got %d", len(trees))
	}
	split := trees[0]
	if split.Depth() != 1 || split.Feature[0] != 0 || split.Threshold[0] != 1.5 {
		t.Fatalf("unexpected split tree %+v", split)
	}
	if split.Cover[0] != 4 || split.Cover[1] != 3 || split.Cover[2] != 1 {
		t.Fatalf("cover should follow Nsamples, got %v", split.Cover)
	}
	// Negative-class leaves are negated and scaled by the learning rate.
	if got := split.Predict([]float64{1.5}); math.Abs(got+0.2) > 1e-12 {
		t.Fatalf("left leaf %v, want -0.2", got)
	}
	if got := split.Predict([]float64{2}); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("right leaf %v, want 0.1", got)
	}
	if got := trees[1].Predict([]float64{0}); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("positive-class leaf %v, want 0.3", got)
	}
}

func TestDecodeTreesRejectsBrokenLinks(t *testing.T) {
	dump := `{"LearningRate":0.1,"ClassLabels":[0,1]}
ROUND 0
CLASS 0, label: 1
{"Id":1,"Nsamples":4,"SplitFeatureIndex":0,"Leaf":false,"Threshold":1,"Leftid":2,"Rightid":9,"Value":0}
{"Id":2,"Nsamples":3,"Leaf":true,"Value":0.4}
`
	if _, err := decodeTrees(dump, 1); err == nil {
		t.Fatal("expected an error for a missing child")
	}
	if _, err := decodeTrees("", 1); err == nil {
		t.Fatal("expected an error for an empty dump")
	}
}

func TestFitRejectsSingleClass(t *testing.T) {
	if err := New(DefaultTrainOptions()).Fit([][]float64{{1}, {2}}, []float64{1, 1}); err == nil {
		t.Fatal("expected error for single-class labels")
	}
}

func TestFitRejectsShallowTrees(t *testing.T) {
	x, y := synthetic(40, 9)
	if err := New(TrainOptions{Rounds: 5, MaxDepth: 1}).Fit(x, y); err == nil {
		t.Fatal("expected boo to reject max depth 1")
	}
}

func TestFitContextCancelled(t *testing.T) {
	x, y := synthetic(30, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(DefaultTrainOptions())
	err := m.FitContext(ctx, x, y)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if m.booster != nil || len(m.Trees()) != 0 {
		t.Fatal("cancelled fit must not train")
	}
}

func synthetic(n int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+17))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		x[i] = []float64{a, b}
		if a*b > 0 {
			y[i] = 1
		}
	}
	return x, y
}
