package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/attribution"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/evaluation"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/features"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/iforest"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/registry"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/split"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/training"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	SplitFraction float64
	Parallel      bool
	EnableShift   bool
	IForest       iforest.TrainOptions
}

type Service struct {
	tracer   trace.Tracer
	logger   zerolog.Logger
	registry *registry.Registry
	trainer  *training.Service
	exporter *attribution.Exporter
	cfg      Config
	now      func() time.Time
}

func NewService(tracer trace.Tracer, logger zerolog.Logger, reg *registry.Registry, cfg Config) *Service {
	if cfg.SplitFraction == 0 {
		cfg.SplitFraction = split.DefaultFraction
	}
	return &Service{
		tracer:   tracer,
		logger:   logger,
		registry: reg,
		trainer:  training.NewService(tracer, logger, training.Config{Parallel: cfg.Parallel}),
		exporter: attribution.NewExporter(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Exporter exposes the attribution strategy table so callers can register
// strategies for additional families.
func (s *Service) Exporter() *attribution.Exporter {
	return s.exporter
}

// Run evaluates every registered backend on a chronological hold-out and
// explains the winner. Missing columns, too little data and a run where no
// backend trained are returned as errors; everything else is recorded as a
// notice on the report.
func (s *Service) Run(ctx context.Context, set domain.ObservationSet) (*Report, error) {
	report := &Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  s.now().UTC(),
		Observations: set.Len(),
		Notices:      s.registry.Notices(),
	}
	log := s.logger.With().Str("run_id", report.RunID).Logger()

	m, err := s.buildFeatures(ctx, set)
	if err != nil {
		return nil, err
	}
	report.FeatureColumns = m.Columns
	report.FeatureVersion = features.NewSpec(set).Version()
	log.Info().Int("observations", set.Len()).Int("rows", m.Len()).Int("features", len(m.Columns)).Msg("features built")

	part, err := s.split(ctx, m)
	if err != nil {
		return nil, err
	}
	report.TrainRows = len(part.TrainX)
	report.TestRows = len(part.TestX)
	from, to := part.TestPeriod()
	report.TestPeriod = Period{From: from, To: to}
	log.Info().Int("train", report.TrainRows).Int("test", report.TestRows).
		Time("test_from", from).Time("test_to", to).Msg("chronological split")

	handles := s.trainer.TrainAll(ctx, s.registry, part.TrainX, part.TrainY)
	for _, h := range handles {
		t := TrainedModel{
			Name:         h.Name,
			Family:       h.Family,
			Capabilities: h.Capabilities.String(),
			Available:    h.Available(),
			DurationMS:   h.Duration.Milliseconds(),
		}
		if h.Err != nil {
			t.Error = h.Err.Error()
			report.Notices = append(report.Notices, common.NoticeFromError(h.Name, h.Err))
		}
		report.Trained = append(report.Trained, t)
	}

	results := s.evaluate(ctx, handles, part)
	ranking, err := s.rank(ctx, results)
	if err != nil {
		return nil, err
	}
	report.Ranking = ranking
	best, _ := ranking.Best()
	report.Best = &best
	if ranking.AUCUndefinedForAll {
		report.Notices = append(report.Notices, common.Notice{
			Kind:    common.KindDegradedRanking,
			Message: "roc_auc undefined for every model; ranking uses f1 only",
		})
	}
	log.Info().Str("best", best.Model).Float64("f1", best.F1).Msg("models ranked")

	s.explain(ctx, report, handles, best, part)
	if s.cfg.EnableShift {
		s.assessShift(ctx, report, part)
	}
	return report, nil
}

func (s *Service) buildFeatures(ctx context.Context, set domain.ObservationSet) (features.Matrix, error) {
	_, span := s.tracer.Start(ctx, "volrisk.features")
	defer span.End()

	m, err := features.Build(set)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feature derivation failed")
		return features.Matrix{}, err
	}
	span.SetAttributes(attribute.Int("rows", m.Len()), attribute.Int("columns", len(m.Columns)))
	return m, nil
}

func (s *Service) split(ctx context.Context, m features.Matrix) (split.Partition, error) {
	_, span := s.tracer.Start(ctx, "volrisk.split")
	defer span.End()

	part, err := split.Chronological(m, s.cfg.SplitFraction)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "split failed")
		return split.Partition{}, err
	}
	span.SetAttributes(attribute.Int("index", part.Index))
	return part, nil
}

func (s *Service) evaluate(ctx context.Context, handles []training.Handle, part split.Partition) []evaluation.Result {
	_, span := s.tracer.Start(ctx, "volrisk.evaluate")
	defer span.End()

	results := evaluation.EvaluateAll(handles, part.TestX, part.TestY)
	for _, r := range results {
		if !r.Available {
			continue
		}
		ev := s.logger.Info().Str("model", r.Model).Float64("accuracy", r.Accuracy).Float64("f1", r.F1)
		if r.ROCAUC != nil {
			ev = ev.Float64("roc_auc", *r.ROCAUC)
		}
		ev.Msg("model evaluated")
	}
	return results
}

func (s *Service) rank(ctx context.Context, results []evaluation.Result) (evaluation.Ranking, error) {
	_, span := s.tracer.Start(ctx, "volrisk.rank")
	defer span.End()

	ranking, err := evaluation.Rank(results)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no model available")
		return evaluation.Ranking{}, err
	}
	span.SetAttributes(attribute.Bool("auc_undefined_for_all", ranking.AUCUndefinedForAll))
	return ranking, nil
}

func (s *Service) explain(ctx context.Context, report *Report, handles []training.Handle, best evaluation.Result, part split.Partition) {
	_, span := s.tracer.Start(ctx, "volrisk.attribution", trace.WithAttributes(
		attribute.String("model", best.Model),
		attribute.String("family", best.Family.String()),
	))
	defer span.End()

	var target attribution.Target
	for _, h := range handles {
		if h.Order == best.Order {
			target = attribution.Target{Name: h.Name, Family: h.Family, Model: h.Model}
			break
		}
	}
	summary, err := s.exporter.Export(target, part.Columns, part.TrainX, part.TestX)
	if err != nil {
		span.RecordError(err)
		report.AttributionSkipped = err.Error()
		report.Notices = append(report.Notices, common.NoticeFromError(best.Model, err))
		s.logger.Warn().Err(err).Str("model", best.Model).Msg("attribution skipped")
		return
	}
	report.Attribution = summary
	if top := summary.Top(1); len(top) > 0 {
		s.logger.Info().Str("model", best.Model).Str("method", summary.Method).
			Str("top_feature", top[0].Name).Msg("attribution exported")
	}
}

func (s *Service) assessShift(ctx context.Context, report *Report, part split.Partition) {
	_, span := s.tracer.Start(ctx, "volrisk.shift")
	defer span.End()

	fail := func(err error) {
		span.RecordError(err)
		report.Notices = append(report.Notices, common.Notice{
			Kind:    common.KindShiftUnavailable,
			Message: fmt.Sprintf("shift diagnostic: %v", err),
		})
		s.logger.Warn().Err(err).Msg("shift diagnostic unavailable")
	}

	model, err := iforest.Train(part.TrainX, part.Columns,
		part.TrainDates[0], part.TrainDates[len(part.TrainDates)-1], s.cfg.IForest)
	if err != nil {
		fail(err)
		return
	}
	shift, err := model.Compare(part.TrainX, part.TestX)
	if err != nil {
		fail(err)
		return
	}
	report.Shift = &shift
	span.SetAttributes(attribute.Float64("drift", shift.Drift()))
	s.logger.Info().Float64("train_mean", shift.TrainMean).Float64("test_mean", shift.TestMean).
		Float64("test_anomaly_share", shift.TestAnomalyShare).Msg("shift assessed")
}
