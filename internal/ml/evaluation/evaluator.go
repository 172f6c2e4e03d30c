package evaluation

import (
	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/training"
)

// Result is the held-out score of one backend. ROCAUC is nil when the metric
// is undefined for this model or partition.
type Result struct {
	Model     string             `json:"model"`
	Family    domain.ModelFamily `json:"family"`
	Order     int                `json:"order"`
	Accuracy  float64            `json:"accuracy"`
	Precision float64            `json:"precision"`
	Recall    float64            `json:"recall"`
	F1        float64            `json:"f1"`
	ROCAUC    *float64           `json:"roc_auc"`
	TestRows  int                `json:"test_rows"`
	Available bool               `json:"available"`
	Cause     string             `json:"cause,omitempty"`

	Err error `json:"-"`
}

// Evaluate scores one handle. Labels come from the probability rule when the
// handle exposes a probability, otherwise from the backend's own prediction.
func Evaluate(h training.Handle, x [][]float64, y []float64) Result {
	r := Result{
		Model:    h.Name,
		Family:   h.Family,
		Order:    h.Order,
		TestRows: len(y),
	}
	if !h.Available() {
		r.Err = h.Err
		if h.Err != nil {
			r.Cause = h.Err.Error()
		}
		return r
	}
	r.Available = true

	var preds []float64
	probs, hasProba := h.PredictProba(x)
	if hasProba {
		preds = make([]float64, len(probs))
		for i, p := range probs {
			preds[i] = common.LabelFromProb(p)
		}
	} else {
		preds = h.Predict(x)
	}

	c := Count(y, preds)
	r.Accuracy = c.Accuracy()
	r.Precision = c.Precision()
	r.Recall = c.Recall()
	r.F1 = c.F1()
	if hasProba {
		if auc, ok := ROCAUC(y, probs); ok {
			r.ROCAUC = &auc
		}
	}
	return r
}

// EvaluateAll keeps the order of handles.
func EvaluateAll(handles []training.Handle, x [][]float64, y []float64) []Result {
	out := make([]Result, len(handles))
	for i, h := range handles {
		out[i] = Evaluate(h, x, y)
	}
	return out
}
