package domain

import (
	"math"
	"time"
)

// Source column names understood by the dataset loader and the feature builder.
const (
	ColumnDate           = "date"
	ColumnLogReturn      = "log_return"
	ColumnEPU            = "epu_index"
	ColumnEventWindow    = "event_window"
	ColumnHighVolatility = "target_high_volatility"
)

// EstimatorColumns is the allow-list of optional volatility estimators, in priority order.
var EstimatorColumns = []string{
	"garch_sigma",
	"vol_7d",
	"vol_14d",
	"vol_30d",
}

type ModelFamily string

const (
	FamilyLinear          ModelFamily = "linear"
	FamilyTreeEnsemble    ModelFamily = "tree-ensemble"
	FamilyGradientBoosted ModelFamily = "gradient-boosted"
)

func (f ModelFamily) String() string {
	return string(f)
}

// Observation is one dated row of the modeling dataset. Missing numeric cells are NaN.
type Observation struct {
	Date           time.Time
	LogReturn      float64
	EPU            float64
	EventWindow    float64
	Estimators     map[string]float64
	HighVolatility float64
}

// Estimator returns the named estimator value, NaN when the row has none.
func (o Observation) Estimator(name string) float64 {
	v, ok := o.Estimators[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// ObservationSet is the time-ordered dataset together with the columns the source provided.
type ObservationSet struct {
	columns map[string]struct{}
	rows    []Observation
}

func NewObservationSet(columns []string, rows []Observation) ObservationSet {
	cols := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		cols[c] = struct{}{}
	}
	return ObservationSet{
		columns: cols,
		rows:    append([]Observation(nil), rows...),
	}
}

func (s ObservationSet) HasColumn(name string) bool {
	_, ok := s.columns[name]
	return ok
}

func (s ObservationSet) Len() int {
	return len(s.rows)
}

func (s ObservationSet) At(i int) Observation {
	return s.rows[i]
}

// Rows returns a copy of the observations.
func (s ObservationSet) Rows() []Observation {
	return append([]Observation(nil), s.rows...)
}
