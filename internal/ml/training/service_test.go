package training

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/registry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type stubModel struct {
	fitErr   error
	panicMsg string
	fitted   *atomic.Int32
}

func (m *stubModel) Fit(x [][]float64, y []float64) error {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.fitted != nil {
		m.fitted.Add(1)
	}
	return m.fitErr
}

func (m *stubModel) Predict(x [][]float64) []float64 {
	return make([]float64, len(x))
}

type stubProbaModel struct{ stubModel }

func (m *stubProbaModel) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = 0.75
	}
	return out
}

func TestTrainAllIsolatesFailures(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		var fitted atomic.Int32
		reg := registry.New()
		mustRegister(t, reg, registry.Entry{
			Name:         "good",
			Family:       domain.FamilyLinear,
			Capabilities: registry.CapProbability,
			New: func() (registry.Classifier, error) {
				return &stubProbaModel{stubModel{fitted: &fitted}}, nil
			},
		})
		mustRegister(t, reg, registry.Entry{
			Name: "failing",
			New: func() (registry.Classifier, error) {
				return &stubModel{fitErr: errors.New("did not converge"), fitted: &fitted}, nil
			},
		})
		mustRegister(t, reg, registry.Entry{
			Name: "panicking",
			New: func() (registry.Classifier, error) {
				return &stubModel{panicMsg: "index out of range"}, nil
			},
		})
		mustRegister(t, reg, registry.Entry{
			Name: "labels",
			New: func() (registry.Classifier, error) {
				return &stubModel{fitted: &fitted}, nil
			},
		})

		svc := NewService(nilTracer(), zerolog.Nop(), Config{Parallel: parallel})
		handles := svc.TrainAll(context.Background(), reg, [][]float64{{1}, {2}}, []float64{0, 1})

		if len(handles) != 4 {
			t.Fatalf("parallel=%v: expected 4 handles, got %d", parallel, len(handles))
		}
		wantNames := []string{"good", "failing", "panicking", "labels"}
		for i, h := range handles {
			if h.Name != wantNames[i] || h.Order != i {
				t.Fatalf("parallel=%v: handle %d is %s/%d", parallel, i, h.Name, h.Order)
			}
		}
		if !handles[0].Available() || !handles[3].Available() {
			t.Fatalf("parallel=%v: healthy backends should be available", parallel)
		}
		for _, i := range []int{1, 2} {
			if handles[i].Available() {
				t.Fatalf("parallel=%v: %s should be unavailable", parallel, handles[i].Name)
			}
			if !errors.Is(handles[i].Err, common.ErrFitFailure) {
				t.Fatalf("parallel=%v: expected FitFailure for %s, got %v", parallel, handles[i].Name, handles[i].Err)
			}
		}
		if fitted.Load() != 3 {
			t.Fatalf("parallel=%v: expected 3 fit calls, got %d", parallel, fitted.Load())
		}
	}
}

func TestProbabilityBoundFromDeclaredCapability(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, registry.Entry{
		Name:         "declared",
		Capabilities: registry.CapProbability,
		New: func() (registry.Classifier, error) {
			return &stubProbaModel{}, nil
		},
	})
	mustRegister(t, reg, registry.Entry{
		Name: "undeclared",
		New: func() (registry.Classifier, error) {
			return &stubProbaModel{}, nil
		},
	})

	handles := NewService(nilTracer(), zerolog.Nop(), Config{}).TrainAll(context.Background(), reg, [][]float64{{1}}, []float64{1})
	probs, ok := handles[0].PredictProba([][]float64{{1}})
	if !ok || len(probs) != 1 || probs[0] != 0.75 {
		t.Fatalf("expected bound probability for declared backend, got %v %v", probs, ok)
	}
	if _, ok := handles[1].PredictProba([][]float64{{1}}); ok {
		t.Fatal("probability must not be bound when the entry did not declare it")
	}
}

func TestTrainAllCancelledContext(t *testing.T) {
	reg := registry.New()
	mustRegister(t, reg, registry.Entry{
		Name: "any",
		New: func() (registry.Classifier, error) {
			return &stubModel{}, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handles := NewService(nilTracer(), zerolog.Nop(), Config{}).TrainAll(ctx, reg, [][]float64{{1}}, []float64{1})
	if handles[0].Available() || !errors.Is(handles[0].Err, context.Canceled) {
		t.Fatalf("expected cancelled fit, got %v", handles[0].Err)
	}
}

func mustRegister(t *testing.T, reg *registry.Registry, e registry.Entry) {
	t.Helper()
	if err := reg.Register(e); err != nil {
		t.Fatalf("register %s: %v", e.Name, err)
	}
}

func nilTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("training-test")
}
