package training

import (
	"context"
	"fmt"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/registry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Parallel fits backends concurrently. Results keep registration order.
	Parallel bool
}

type Service struct {
	tracer trace.Tracer
	logger zerolog.Logger
	cfg    Config
}

// contextFitter is implemented by backends that can stop early.
type contextFitter interface {
	FitContext(ctx context.Context, x [][]float64, y []float64) error
}

// Handle is the outcome of fitting one registry entry. Err is a FitFailure
// when the backend could not be trained.
type Handle struct {
	Name         string
	Family       domain.ModelFamily
	Capabilities registry.Capability
	Order        int
	Model        registry.Classifier
	Err          error
	Duration     time.Duration

	proba func([][]float64) []float64
}

func (h Handle) Available() bool {
	return h.Err == nil && h.Model != nil
}

func (h Handle) Predict(x [][]float64) []float64 {
	return h.Model.Predict(x)
}

// PredictProba is only bound when the entry declared the probability
// capability.
func (h Handle) PredictProba(x [][]float64) ([]float64, bool) {
	if h.proba == nil {
		return nil, false
	}
	return h.proba(x), true
}

func NewService(tracer trace.Tracer, logger zerolog.Logger, cfg Config) *Service {
	return &Service{tracer: tracer, logger: logger, cfg: cfg}
}

// TrainAll fits every registered backend on the same partition. A failure in
// one backend never affects the others.
func (s *Service) TrainAll(ctx context.Context, reg *registry.Registry, x [][]float64, y []float64) []Handle {
	ctx, span := s.tracer.Start(ctx, "volrisk.train")
	defer span.End()

	entries := reg.Entries()
	span.SetAttributes(
		attribute.Int("backends", len(entries)),
		attribute.Int("rows", len(x)),
		attribute.Bool("parallel", s.cfg.Parallel),
	)
	handles := make([]Handle, len(entries))

	if s.cfg.Parallel {
		var g errgroup.Group
		for i, e := range entries {
			g.Go(func() error {
				handles[i] = s.fit(ctx, i, e, x, y)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, e := range entries {
			handles[i] = s.fit(ctx, i, e, x, y)
		}
	}

	failed := 0
	for _, h := range handles {
		if !h.Available() {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	return handles
}

func (s *Service) fit(ctx context.Context, order int, e registry.Entry, x [][]float64, y []float64) (h Handle) {
	ctx, span := s.tracer.Start(ctx, "volrisk.train.backend", trace.WithAttributes(
		attribute.String("model", e.Name),
		attribute.String("family", e.Family.String()),
	))
	defer span.End()

	h = Handle{Name: e.Name, Family: e.Family, Capabilities: e.Capabilities, Order: order}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			h.Model = nil
			h.proba = nil
			h.Err = common.FitFailure(e.Name, fmt.Errorf("panic: %v", rec))
		}
		h.Duration = time.Since(start)
		if h.Err != nil {
			span.RecordError(h.Err)
			span.SetStatus(codes.Error, "fit failed")
			s.logger.Warn().Err(h.Err).Str("model", e.Name).Msg("backend fit failed")
			return
		}
		s.logger.Info().Str("model", e.Name).Dur("took", h.Duration).Int("rows", len(x)).Msg("backend trained")
	}()

	if err := ctx.Err(); err != nil {
		h.Err = common.FitFailure(e.Name, err)
		return h
	}
	model, err := e.New()
	if err != nil {
		h.Err = common.FitFailure(e.Name, err)
		return h
	}
	if cf, ok := model.(contextFitter); ok {
		err = cf.FitContext(ctx, x, y)
	} else {
		err = model.Fit(x, y)
	}
	if err != nil {
		h.Err = common.FitFailure(e.Name, err)
		return h
	}

	h.Model = model
	if e.Capabilities.Has(registry.CapProbability) {
		if pc, ok := model.(registry.ProbabilityClassifier); ok {
			h.proba = pc.PredictProba
		}
	}
	return h
}
