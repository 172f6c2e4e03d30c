package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/attribution"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/evaluation"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/pipeline"
)

const (
	PerformanceJSON = "model_performance.json"
	PerformanceCSV  = "model_performance.csv"
	AttributionJSON = "attribution_summary.json"
)

// Performance is the model_performance.json document.
type Performance struct {
	RunID              string              `json:"run_id"`
	GeneratedAt        time.Time           `json:"generated_at"`
	FeatureVersion     string              `json:"feature_version"`
	FeatureColumns     []string            `json:"feature_columns"`
	TrainRows          int                 `json:"train_rows"`
	TestRows           int                 `json:"test_rows"`
	TestPeriod         pipeline.Period     `json:"test_period"`
	Best               string              `json:"best_model,omitempty"`
	AUCUndefinedForAll bool                `json:"auc_undefined_for_all"`
	Results            []evaluation.Result `json:"results"`
	Notices            []common.Notice     `json:"notices"`
}

// AttributionDoc is the attribution_summary.json document. Summary is nil
// and Skipped is set when the best model could not be explained.
type AttributionDoc struct {
	RunID   string               `json:"run_id"`
	Summary *attribution.Summary `json:"summary,omitempty"`
	Skipped string               `json:"skipped,omitempty"`
}

func NewPerformance(r *pipeline.Report) Performance {
	p := Performance{
		RunID:              r.RunID,
		GeneratedAt:        r.GeneratedAt,
		FeatureVersion:     r.FeatureVersion,
		FeatureColumns:     r.FeatureColumns,
		TrainRows:          r.TrainRows,
		TestRows:           r.TestRows,
		TestPeriod:         r.TestPeriod,
		AUCUndefinedForAll: r.Ranking.AUCUndefinedForAll,
		Results:            r.Ranking.Results,
		Notices:            r.Notices,
	}
	if r.Best != nil {
		p.Best = r.Best.Model
	}
	if p.Notices == nil {
		p.Notices = []common.Notice{}
	}
	return p
}

// WriteArtifacts writes the JSON and CSV artifacts into dir, creating it if
// needed, and returns the written paths.
func WriteArtifacts(dir string, r *pipeline.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}

	perfPath := filepath.Join(dir, PerformanceJSON)
	if err := writeJSON(perfPath, NewPerformance(r)); err != nil {
		return nil, err
	}
	csvPath := filepath.Join(dir, PerformanceCSV)
	if err := writePerformanceCSV(csvPath, r.Ranking.Results); err != nil {
		return nil, err
	}
	attrPath := filepath.Join(dir, AttributionJSON)
	doc := AttributionDoc{RunID: r.RunID, Summary: r.Attribution, Skipped: r.AttributionSkipped}
	if err := writeJSON(attrPath, doc); err != nil {
		return nil, err
	}
	return []string{perfPath, csvPath, attrPath}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writePerformanceCSV writes one row per result; an undefined roc_auc is an
// empty cell.
func writePerformanceCSV(path string, results []evaluation.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"rank", "model", "family", "accuracy", "precision", "recall", "f1", "roc_auc", "available", "cause"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, res := range results {
		auc := ""
		if res.ROCAUC != nil {
			auc = fmt.Sprintf("%.6f", *res.ROCAUC)
		}
		rank := ""
		if res.Available {
			rank = fmt.Sprint(i + 1)
		}
		record := []string{
			rank,
			res.Model,
			res.Family.String(),
			fmt.Sprintf("%.6f", res.Accuracy),
			fmt.Sprintf("%.6f", res.Precision),
			fmt.Sprintf("%.6f", res.Recall),
			fmt.Sprintf("%.6f", res.F1),
			auc,
			fmt.Sprint(res.Available),
			res.Cause,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
