package forest

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/tree"
)

func TestFitPredictsTrainingSignal(t *testing.T) {
	x, y := synthetic(150, 11)
	m := New(TrainOptions{NumTrees: 50, Bootstrap: true, Seed: 42})
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(m.Trees()) != 50 {
		t.Fatalf("expected 50 trees, got %d", len(m.Trees()))
	}
	correct := 0
	for i, p := range m.Predict(x) {
		if p == y[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(y)); acc < 0.9 {
		t.Fatalf("expected training accuracy >= 0.9, got %.3f", acc)
	}
}

func TestProbabilityIsMeanOfTrees(t *testing.T) {
	x, y := synthetic(60, 5)
	m := New(TrainOptions{NumTrees: 10, Bootstrap: true, Seed: 1})
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	probs := m.PredictProba(x)
	for i, row := range x {
		sum := 0.0
		for _, tr := range m.Trees() {
			sum += tr.Predict(row)
		}
		if want := sum / 10; math.Abs(probs[i]-want) > 1e-12 {
			t.Fatalf("row %d: proba %v want %v", i, probs[i], want)
		}
		if got := tree.Output(m, row); math.Abs(got-probs[i]) > 1e-12 {
			t.Fatalf("row %d: ensemble output %v differs from proba %v", i, got, probs[i])
		}
	}
}

func TestFitDeterministicAcrossWorkers(t *testing.T) {
	x, y := synthetic(80, 9)
	a := New(TrainOptions{NumTrees: 20, Bootstrap: true, Seed: 7, Workers: 1})
	b := New(TrainOptions{NumTrees: 20, Bootstrap: true, Seed: 7, Workers: 4})
	if err := a.Fit(x, y); err != nil {
		t.Fatalf("fit a: %v", err)
	}
	if err := b.Fit(x, y); err != nil {
		t.Fatalf("fit b: %v", err)
	}
	pa, pb := a.PredictProba(x), b.PredictProba(x)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("row %d: %v != %v", i, pa[i], pb[i])
		}
	}
}

func TestFitRejectsNonBinaryLabels(t *testing.T) {
	if err := New(DefaultTrainOptions()).Fit([][]float64{{1}, {2}}, []float64{0, 2}); err == nil {
		t.Fatal("expected error for non-binary labels")
	}
}

func synthetic(n int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed*3+1))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b := rng.Float64(), rng.Float64()
		x[i] = []float64{a, b, rng.Float64()}
		if a+b > 1 {
			y[i] = 1
		}
	}
	return x, y
}
