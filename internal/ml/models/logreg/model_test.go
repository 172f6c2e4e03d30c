package logreg

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestFitSeparatesClasses(t *testing.T) {
	x, y := synthetic(200, 7)
	m := New(DefaultTrainOptions())
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
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
	coef := m.Coefficients()
	if coef[0] <= 0 {
		t.Fatalf("expected positive weight on the informative feature, got %v", coef[0])
	}
}

func TestMarginMatchesProbability(t *testing.T) {
	x, y := synthetic(120, 3)
	m := New(DefaultTrainOptions())
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	probs := m.PredictProba(x)
	for i := range x {
		want := 1 / (1 + math.Exp(-m.Margin(x[i])))
		if math.Abs(probs[i]-want) > 1e-12 {
			t.Fatalf("row %d: proba %v, sigmoid(margin) %v", i, probs[i], want)
		}
		if probs[i] < 0 || probs[i] > 1 {
			t.Fatalf("row %d: probability out of range: %v", i, probs[i])
		}
	}
}

func TestFitRejectsSingleClass(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	y := []float64{1, 1, 1}
	if err := New(DefaultTrainOptions()).Fit(x, y); err == nil {
		t.Fatal("expected error for single-class labels")
	}
}

func TestFitRejectsRaggedRows(t *testing.T) {
	x := [][]float64{{1, 2}, {2}, {3, 1}}
	y := []float64{0, 1, 0}
	if err := New(DefaultTrainOptions()).Fit(x, y); err == nil {
		t.Fatal("expected error for ragged rows")
	}
}

func TestUnfittedModelPredictsHalf(t *testing.T) {
	m := New(TrainOptions{})
	for _, p := range m.PredictProba([][]float64{{1, 2}}) {
		if p != 0.5 {
			t.Fatalf("expected 0.5 from unfitted model, got %v", p)
		}
	}
}

// synthetic builds a noisy problem where only column 0 carries signal and
// column 1 lives on a much larger scale.
func synthetic(n int, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		signal := rng.NormFloat64()
		x[i] = []float64{signal, 150 + 40*rng.NormFloat64()}
		if signal+0.3*rng.NormFloat64() > 0 {
			y[i] = 1
		}
	}
	return x, y
}
