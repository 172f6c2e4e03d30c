package features

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
)

// Lags are the backward offsets applied to the return and uncertainty series.
var Lags = []int{1, 2, 3}

// MaxLag is the number of leading rows without full lag history.
const MaxLag = 3

// Spec is the immutable, ordered feature column list for one run.
type Spec struct {
	columns    []string
	estimators []string
}

// NewSpec fixes the column order before any row is processed: return lags,
// uncertainty lags, the event flag, then whichever estimators the source has.
func NewSpec(set domain.ObservationSet) Spec {
	cols := make([]string, 0, 2*len(Lags)+1+len(domain.EstimatorColumns))
	for _, lag := range Lags {
		cols = append(cols, LagColumn(domain.ColumnLogReturn, lag))
	}
	for _, lag := range Lags {
		cols = append(cols, LagColumn("epu", lag))
	}
	cols = append(cols, domain.ColumnEventWindow)

	var estimators []string
	for _, name := range domain.EstimatorColumns {
		if set.HasColumn(name) {
			estimators = append(estimators, name)
			cols = append(cols, name)
		}
	}
	return Spec{columns: cols, estimators: estimators}
}

func LagColumn(base string, lag int) string {
	return fmt.Sprintf("%s_lag%d", base, lag)
}

func (s Spec) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s Spec) Len() int {
	return len(s.columns)
}

// Version identifies the column layout, e.g. for artifact metadata.
func (s Spec) Version() string {
	h := fnv.New32a()
	h.Write([]byte(strings.Join(s.columns, ",")))
	return fmt.Sprintf("v1-%08x", h.Sum32())
}

// Matrix is the feature table with its aligned labels.
type Matrix struct {
	Columns []string
	Rows    [][]float64
	Labels  []float64
	Dates   []time.Time
	// Source holds the index of the originating observation for every row.
	Source []int
}

func (m Matrix) Len() int {
	return len(m.Rows)
}

// Column returns a copy of the values of the named column.
func (m Matrix) Column(name string) ([]float64, bool) {
	j := -1
	for i, c := range m.Columns {
		if c == name {
			j = i
			break
		}
	}
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(m.Rows))
	for i := range m.Rows {
		out[i] = m.Rows[i][j]
	}
	return out, true
}

// Build derives lagged predictors from a time-ordered observation set.
func Build(set domain.ObservationSet) (Matrix, error) {
	if !set.HasColumn(domain.ColumnHighVolatility) {
		return Matrix{}, common.MissingColumn(domain.ColumnHighVolatility)
	}
	spec := NewSpec(set)
	hasEvent := set.HasColumn(domain.ColumnEventWindow)

	n := set.Len()
	m := Matrix{
		Columns: spec.Columns(),
		Rows:    make([][]float64, 0, max(n-MaxLag, 0)),
		Labels:  make([]float64, 0, max(n-MaxLag, 0)),
		Dates:   make([]time.Time, 0, max(n-MaxLag, 0)),
		Source:  make([]int, 0, max(n-MaxLag, 0)),
	}

	for i := 0; i < n; i++ {
		obs := set.At(i)
		row := make([]float64, 0, spec.Len())
		for _, lag := range Lags {
			row = append(row, lagged(set, i, lag, func(o domain.Observation) float64 { return o.LogReturn }))
		}
		for _, lag := range Lags {
			row = append(row, lagged(set, i, lag, func(o domain.Observation) float64 { return o.EPU }))
		}
		event := 0.0
		if hasEvent {
			event = obs.EventWindow
		}
		row = append(row, event)
		for _, name := range spec.estimators {
			row = append(row, obs.Estimator(name))
		}

		if !complete(row) || math.IsNaN(obs.HighVolatility) {
			continue
		}
		m.Rows = append(m.Rows, row)
		m.Labels = append(m.Labels, obs.HighVolatility)
		m.Dates = append(m.Dates, obs.Date)
		m.Source = append(m.Source, i)
	}

	if len(m.Rows) == 0 {
		return Matrix{}, common.InsufficientData(
			fmt.Sprintf("no rows left after lag derivation (%d observations)", n),
		).WithContext("observations", n)
	}
	return m, nil
}

func lagged(set domain.ObservationSet, i, lag int, value func(domain.Observation) float64) float64 {
	if i-lag < 0 {
		return math.NaN()
	}
	return value(set.At(i - lag))
}

func complete(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
