package domain

import (
	"math"
	"testing"
	"time"
)

func TestObservationSetHasColumn(t *testing.T) {
	set := NewObservationSet([]string{ColumnDate, ColumnLogReturn}, nil)
	if !set.HasColumn(ColumnLogReturn) {
		t.Fatal("expected log_return column to be present")
	}
	if set.HasColumn(ColumnHighVolatility) {
		t.Fatal("expected label column to be absent")
	}
}

func TestObservationSetRowsIsCopy(t *testing.T) {
	rows := []Observation{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), LogReturn: 0.01}}
	set := NewObservationSet([]string{ColumnDate}, rows)
	rows[0].LogReturn = 9

	got := set.Rows()
	got[0].LogReturn = 7
	if set.At(0).LogReturn != 0.01 {
		t.Fatalf("observation set was mutated: %v", set.At(0).LogReturn)
	}
}

func TestObservationEstimator(t *testing.T) {
	o := Observation{Estimators: map[string]float64{"vol_7d": 0.2}}
	if o.Estimator("vol_7d") != 0.2 {
		t.Fatalf("unexpected estimator value %v", o.Estimator("vol_7d"))
	}
	if !math.IsNaN(o.Estimator("garch_sigma")) {
		t.Fatal("expected NaN for missing estimator")
	}
}
