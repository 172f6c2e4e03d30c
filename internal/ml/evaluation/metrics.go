// Package evaluation scores fitted backends on the held-out partition and
// ranks them.
package evaluation

import (
	"math"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Confusion counts for the positive class.
type Confusion struct {
	TP, FP, TN, FN int
}

func Count(labels, preds []float64) Confusion {
	var c Confusion
	for i := range labels {
		pos := labels[i] >= 0.5
		predPos := preds[i] >= 0.5
		switch {
		case pos && predPos:
			c.TP++
		case !pos && predPos:
			c.FP++
		case !pos && !predPos:
			c.TN++
		default:
			c.FN++
		}
	}
	return c
}

func (c Confusion) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

func (c Confusion) Accuracy() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(c.Total())
}

func (c Confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

func (c Confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// F1 is 0 when precision and recall are both 0.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// ROCAUC is the area under the ROC curve of scores against labels. It is
// undefined when labels contain a single class.
func ROCAUC(labels, scores []float64) (float64, bool) {
	if len(labels) == 0 || len(labels) != len(scores) {
		return 0, false
	}
	neg, pos := common.ClassCounts(labels)
	if neg == 0 || pos == 0 {
		return 0, false
	}
	y := make([]float64, len(scores))
	classes := make([]bool, len(labels))
	for i := range scores {
		y[i] = common.Clamp01(scores[i])
		classes[i] = labels[i] >= 0.5
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	if len(fpr) < 2 {
		return 0, false
	}
	auc := integrate.Trapezoidal(fpr, tpr)
	if math.IsNaN(auc) || math.IsInf(auc, 0) {
		return 0, false
	}
	return auc, true
}
