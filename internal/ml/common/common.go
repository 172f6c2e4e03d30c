package common

import (
	"math"
)

const (
	ModelKeyLogReg           = "logistic_regression"
	ModelKeyRandomForest     = "random_forest"
	ModelKeyGradientBoosting = "gradient_boosting"
)

// DecisionThreshold maps a positive-class probability to a label.
const DecisionThreshold = 0.5

func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func LabelFromProb(p float64) float64 {
	if Clamp01(p) >= DecisionThreshold {
		return 1
	}
	return 0
}

func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// IsBinary reports whether every label is exactly 0 or 1.
func IsBinary(labels []float64) bool {
	for _, y := range labels {
		if y != 0 && y != 1 {
			return false
		}
	}
	return true
}

// ClassCounts returns the number of negative and positive labels.
func ClassCounts(labels []float64) (neg, pos int) {
	for _, y := range labels {
		if y >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}
