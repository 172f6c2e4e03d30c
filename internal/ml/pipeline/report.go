package pipeline

import (
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/attribution"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/evaluation"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/iforest"
)

type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TrainedModel records what happened to one registered backend.
type TrainedModel struct {
	Name         string             `json:"name"`
	Family       domain.ModelFamily `json:"family"`
	Capabilities string             `json:"capabilities"`
	Available    bool               `json:"available"`
	DurationMS   int64              `json:"duration_ms"`
	Error        string             `json:"error,omitempty"`
}

// Report is the outcome of one evaluation run.
type Report struct {
	RunID          string    `json:"run_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	Observations   int       `json:"observations"`
	FeatureColumns []string  `json:"feature_columns"`
	FeatureVersion string    `json:"feature_version"`
	TrainRows      int       `json:"train_rows"`
	TestRows       int       `json:"test_rows"`
	TestPeriod     Period    `json:"test_period"`

	Trained []TrainedModel     `json:"trained"`
	Ranking evaluation.Ranking `json:"ranking"`
	Best    *evaluation.Result `json:"best,omitempty"`

	Attribution        *attribution.Summary `json:"attribution,omitempty"`
	AttributionSkipped string               `json:"attribution_skipped,omitempty"`
	Shift              *iforest.Shift       `json:"shift,omitempty"`

	Notices []common.Notice `json:"notices"`
}

// TrainedNames lists backends that fit successfully, in registration order.
func (r *Report) TrainedNames() []string {
	var out []string
	for _, t := range r.Trained {
		if t.Available {
			out = append(out, t.Name)
		}
	}
	return out
}
