package split

import (
	"fmt"
	"math"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/features"
)

const DefaultFraction = 0.8

// Partition is a time-ordered train/test split. Slices share backing
// arrays with the source matrix and must be treated as read-only.
type Partition struct {
	Columns    []string
	TrainX     [][]float64
	TrainY     []float64
	TestX      [][]float64
	TestY      []float64
	TrainDates []time.Time
	TestDates  []time.Time
	Index      int
}

// Chronological splits m at floor(n*fraction) without reordering rows.
func Chronological(m features.Matrix, fraction float64) (Partition, error) {
	if fraction == 0 {
		fraction = DefaultFraction
	}
	if math.IsNaN(fraction) || fraction <= 0 || fraction >= 1 {
		return Partition{}, fmt.Errorf("split fraction must be in (0,1), got %v", fraction)
	}
	n := m.Len()
	idx := int(math.Floor(float64(n) * fraction))
	if idx <= 0 || idx >= n {
		return Partition{}, common.InsufficientData(
			fmt.Sprintf("split of %d rows at %.2f leaves an empty partition (train=%d test=%d)", n, fraction, idx, n-idx),
		).WithContext("rows", n).WithContext("index", idx)
	}
	return Partition{
		Columns:    m.Columns,
		TrainX:     m.Rows[:idx],
		TrainY:     m.Labels[:idx],
		TestX:      m.Rows[idx:],
		TestY:      m.Labels[idx:],
		TrainDates: m.Dates[:idx],
		TestDates:  m.Dates[idx:],
		Index:      idx,
	}, nil
}

// TestPeriod returns the first and last date of the held-out partition.
func (p Partition) TestPeriod() (time.Time, time.Time) {
	if len(p.TestDates) == 0 {
		return time.Time{}, time.Time{}
	}
	return p.TestDates[0], p.TestDates[len(p.TestDates)-1]
}
