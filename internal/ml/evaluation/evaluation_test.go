package evaluation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/registry"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/training"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// fixedModel returns preset probabilities regardless of input.
type fixedModel struct {
	probs  []float64
	labels []float64
}

func (m *fixedModel) Fit([][]float64, []float64) error { return nil }

func (m *fixedModel) Predict(x [][]float64) []float64 {
	if m.labels != nil {
		return m.labels
	}
	out := make([]float64, len(m.probs))
	for i, p := range m.probs {
		out[i] = common.LabelFromProb(p)
	}
	return out
}

func (m *fixedModel) PredictProba(x [][]float64) []float64 { return m.probs }

type labelModel struct{ labels []float64 }

func (m *labelModel) Fit([][]float64, []float64) error { return nil }
func (m *labelModel) Predict([][]float64) []float64    { return m.labels }

func TestConfusionMetrics(t *testing.T) {
	labels := []float64{1, 1, 0, 0, 1}
	preds := []float64{1, 0, 1, 0, 1}
	c := Count(labels, preds)
	if c.TP != 2 || c.FP != 1 || c.TN != 1 || c.FN != 1 {
		t.Fatalf("unexpected confusion %+v", c)
	}
	if got := c.Accuracy(); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("accuracy %v", got)
	}
	if got := c.F1(); math.Abs(got-2.0/3.0) > 1e-12 {
		t.Fatalf("f1 %v", got)
	}
}

func TestF1ZeroWhenNoPositivePredictions(t *testing.T) {
	c := Count([]float64{1, 0, 1}, []float64{0, 0, 0})
	if c.F1() != 0 {
		t.Fatalf("expected f1=0, got %v", c.F1())
	}
}

func TestROCAUC(t *testing.T) {
	auc, ok := ROCAUC([]float64{1, 0, 1, 0}, []float64{0.1, 0.35, 0.4, 0.8})
	if !ok || math.Abs(auc-0.25) > 1e-12 {
		t.Fatalf("expected auc 0.25, got %v %v", auc, ok)
	}
	auc, ok = ROCAUC([]float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.7, 0.9})
	if !ok || auc != 1 {
		t.Fatalf("expected perfect auc, got %v %v", auc, ok)
	}
	auc, ok = ROCAUC([]float64{0, 1}, []float64{0.5, 0.5})
	if !ok || math.Abs(auc-0.5) > 1e-12 {
		t.Fatalf("expected tied auc 0.5, got %v %v", auc, ok)
	}
	if _, ok := ROCAUC([]float64{1, 1, 1}, []float64{0.2, 0.6, 0.9}); ok {
		t.Fatal("auc must be undefined for single-class labels")
	}
}

func TestEvaluateUsesProbabilityRule(t *testing.T) {
	y := []float64{1, 0, 1, 0}
	handles := train(t,
		registry.Entry{
			Name:         "proba",
			Family:       domain.FamilyLinear,
			Capabilities: registry.CapProbability,
			// Predict disagrees with the probabilities to show they win.
			New: func() (registry.Classifier, error) {
				return &fixedModel{probs: []float64{0.5, 0.49, 0.9, 0.1}, labels: []float64{0, 1, 0, 1}}, nil
			},
		},
		registry.Entry{
			Name: "labels",
			New: func() (registry.Classifier, error) {
				return &labelModel{labels: []float64{1, 1, 1, 1}}, nil
			},
		},
	)
	results := EvaluateAll(handles, make([][]float64, 4), y)

	if results[0].F1 != 1 || results[0].Accuracy != 1 {
		t.Fatalf("expected perfect scores from the >=0.5 rule, got %+v", results[0])
	}
	if results[0].ROCAUC == nil || *results[0].ROCAUC != 1 {
		t.Fatalf("expected auc 1, got %v", results[0].ROCAUC)
	}
	if results[1].ROCAUC != nil {
		t.Fatal("auc must be undefined without probability capability")
	}
	if math.Abs(results[1].Accuracy-0.5) > 1e-12 {
		t.Fatalf("expected accuracy 0.5 for label-only model, got %v", results[1].Accuracy)
	}
	for _, r := range results {
		if !r.Available || r.TestRows != 4 {
			t.Fatalf("unexpected result %+v", r)
		}
	}
}

func TestEvaluateSingleClassTestLabels(t *testing.T) {
	handles := train(t, registry.Entry{
		Name:         "proba",
		Capabilities: registry.CapProbability,
		New: func() (registry.Classifier, error) {
			return &fixedModel{probs: []float64{0.2, 0.7, 0.9}}, nil
		},
	})
	r := Evaluate(handles[0], make([][]float64, 3), []float64{1, 1, 1})
	if r.ROCAUC != nil {
		t.Fatalf("expected undefined auc, got %v", *r.ROCAUC)
	}
	if !r.Available {
		t.Fatal("undefined auc is not an error")
	}
}

func TestRankOrdersByF1WithStableTies(t *testing.T) {
	auc := 0.7
	results := []Result{
		{Model: "a", Order: 0, F1: 0.5, Available: true, ROCAUC: &auc},
		{Model: "b", Order: 1, Available: false, Err: common.FitFailure("b", errors.New("x"))},
		{Model: "c", Order: 2, F1: 0.8, Available: true},
		{Model: "d", Order: 3, F1: 0.5, Available: true},
	}
	ranking, err := Rank(results)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	got := make([]string, len(ranking.Results))
	for i, r := range ranking.Results {
		got[i] = r.Model
	}
	want := []string{"c", "a", "d", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", got, want)
		}
	}
	best, ok := ranking.Best()
	if !ok || best.Model != "c" {
		t.Fatalf("unexpected best %+v", best)
	}
	if ranking.AUCUndefinedForAll {
		t.Fatal("auc is defined for one model")
	}
	if len(ranking.Available()) != 3 {
		t.Fatalf("expected 3 available results, got %d", len(ranking.Available()))
	}
}

func TestRankSingleModel(t *testing.T) {
	ranking, err := Rank([]Result{{Model: "only", F1: 0, Available: true}})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if best, ok := ranking.Best(); !ok || best.Model != "only" {
		t.Fatalf("single model must be best, got %+v", best)
	}
	if !ranking.AUCUndefinedForAll {
		t.Fatal("expected degraded ranking flag")
	}
}

func TestRankNoAvailableModel(t *testing.T) {
	_, err := Rank([]Result{{Model: "x", Available: false}})
	if !errors.Is(err, common.ErrFitFailure) {
		t.Fatalf("expected FitFailure, got %v", err)
	}
}

func train(t *testing.T, entries ...registry.Entry) []training.Handle {
	t.Helper()
	reg := registry.New()
	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.Name, err)
		}
	}
	svc := training.NewService(trace.NewNoopTracerProvider().Tracer("evaluation-test"), zerolog.Nop(), training.Config{})
	return svc.TrainAll(context.Background(), reg, [][]float64{{0}, {1}}, []float64{0, 1})
}
