// Package attribution explains the selected model's held-out predictions with
// Shapley values and summarizes them per feature.
package attribution

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/tree"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/registry"

	"gonum.org/v1/gonum/floats"
)

const (
	MethodTreeSHAP   = "tree_shap_path_dependent"
	MethodLinearSHAP = "linear_shap_interventional"

	OutputProbability = "probability"
	OutputMargin      = "margin"
)

// Explanation holds per-row, per-feature contributions. For every row,
// BaseValue plus the row's contributions equals the model output in the
// Output space.
type Explanation struct {
	Method    string
	Output    string
	BaseValue float64
	Values    [][]float64
}

// Strategy explains rows of x for one family of models. background is the
// training partition.
type Strategy interface {
	Explain(model registry.Classifier, background, x [][]float64) (Explanation, error)
}

type StrategyFunc func(model registry.Classifier, background, x [][]float64) (Explanation, error)

func (f StrategyFunc) Explain(model registry.Classifier, background, x [][]float64) (Explanation, error) {
	return f(model, background, x)
}

// LinearModel is what the linear strategy needs from a backend.
type LinearModel interface {
	Coefficients() []float64
	Intercept() float64
}

// TreeStrategy explains tree ensembles. Forests are explained in probability
// space and boosted ensembles in margin space, following their Output.
func TreeStrategy(output string) Strategy {
	return StrategyFunc(func(model registry.Classifier, _, x [][]float64) (Explanation, error) {
		e, ok := model.(tree.Ensemble)
		if !ok {
			return Explanation{}, fmt.Errorf("%T does not expose its trees", model)
		}
		values := make([][]float64, len(x))
		for i := range x {
			values[i] = TreeValues(e, x[i])
		}
		return Explanation{
			Method:    MethodTreeSHAP,
			Output:    output,
			BaseValue: ExpectedValue(e),
			Values:    values,
		}, nil
	})
}

// LinearStrategy computes w_j * (x_ij - mean_j) with means taken over the
// background rows, in log-odds space.
func LinearStrategy() Strategy {
	return StrategyFunc(func(model registry.Classifier, background, x [][]float64) (Explanation, error) {
		lm, ok := model.(LinearModel)
		if !ok {
			return Explanation{}, fmt.Errorf("%T does not expose coefficients", model)
		}
		if len(background) == 0 {
			return Explanation{}, fmt.Errorf("empty background")
		}
		w := lm.Coefficients()
		means := columnMeans(background, len(w))
		values := make([][]float64, len(x))
		for i := range x {
			if len(x[i]) != len(w) {
				return Explanation{}, fmt.Errorf("row %d has %d features, want %d", i, len(x[i]), len(w))
			}
			values[i] = make([]float64, len(w))
			for j := range w {
				values[i][j] = w[j] * (x[i][j] - means[j])
			}
		}
		return Explanation{
			Method:    MethodLinearSHAP,
			Output:    OutputMargin,
			BaseValue: lm.Intercept() + floats.Dot(w, means),
			Values:    values,
		}, nil
	})
}

// columnMeans sums each column in sorted order so the means do not depend
// on background row order.
func columnMeans(rows [][]float64, p int) []float64 {
	means := make([]float64, p)
	col := make([]float64, len(rows))
	for j := 0; j < p; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		means[j] = sortedMean(col)
	}
	return means
}

type Exporter struct {
	strategies map[domain.ModelFamily]Strategy
}

// NewExporter returns an exporter with strategies for the built-in families.
func NewExporter() *Exporter {
	return &Exporter{strategies: map[domain.ModelFamily]Strategy{
		domain.FamilyLinear:          LinearStrategy(),
		domain.FamilyTreeEnsemble:    TreeStrategy(OutputProbability),
		domain.FamilyGradientBoosted: TreeStrategy(OutputMargin),
	}}
}

func (e *Exporter) Register(family domain.ModelFamily, s Strategy) {
	e.strategies[family] = s
}

// Target identifies the model to explain.
type Target struct {
	Name   string
	Family domain.ModelFamily
	Model  registry.Classifier
}

// Export explains x with the strategy for the target's family and summarizes
// the result. Families without a strategy, or models the strategy cannot
// read, yield UnsupportedModelFamily.
func (e *Exporter) Export(target Target, columns []string, background, x [][]float64) (*Summary, error) {
	s, ok := e.strategies[target.Family]
	if !ok || target.Model == nil {
		return nil, common.UnsupportedModelFamily(target.Name, string(target.Family))
	}
	exp, err := s.Explain(target.Model, background, x)
	if err != nil {
		return nil, common.NewError(common.KindUnsupportedModelFamily,
			fmt.Sprintf("cannot explain %s (family %q)", target.Name, target.Family), err).
			WithContext("model", target.Name).
			WithContext("family", string(target.Family))
	}
	return Summarize(target.Name, target.Family, columns, exp), nil
}

type FeatureAttribution struct {
	Name    string  `json:"feature"`
	MeanAbs float64 `json:"mean_abs_shap"`
	Mean    float64 `json:"mean_shap"`
}

type Summary struct {
	Model     string               `json:"model"`
	Family    domain.ModelFamily   `json:"family"`
	Method    string               `json:"method"`
	Output    string               `json:"output"`
	BaseValue float64              `json:"base_value"`
	Rows      int                  `json:"rows"`
	Features  []FeatureAttribution `json:"features"`
}

// Summarize ranks features by mean absolute contribution, then name. Values
// are sorted before summation so the result does not depend on row order.
func Summarize(model string, family domain.ModelFamily, columns []string, exp Explanation) *Summary {
	s := &Summary{
		Model:     model,
		Family:    family,
		Method:    exp.Method,
		Output:    exp.Output,
		BaseValue: exp.BaseValue,
		Rows:      len(exp.Values),
		Features:  make([]FeatureAttribution, len(columns)),
	}
	col := make([]float64, len(exp.Values))
	abs := make([]float64, len(exp.Values))
	for j, name := range columns {
		for i := range exp.Values {
			col[i] = exp.Values[i][j]
			abs[i] = math.Abs(col[i])
		}
		s.Features[j] = FeatureAttribution{Name: name, MeanAbs: sortedMean(abs), Mean: sortedMean(col)}
	}
	slices.SortStableFunc(s.Features, func(a, b FeatureAttribution) int {
		if c := cmp.Compare(b.MeanAbs, a.MeanAbs); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return s
}

func sortedMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := append([]float64(nil), values...)
	slices.Sort(v)
	return floats.Sum(v) / float64(len(v))
}

// Top returns at most n features.
func (s *Summary) Top(n int) []FeatureAttribution {
	if n <= 0 || n >= len(s.Features) {
		return s.Features
	}
	return s.Features[:n]
}
