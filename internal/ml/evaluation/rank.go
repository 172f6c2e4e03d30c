package evaluation

import (
	"slices"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
)

type Ranking struct {
	Results []Result `json:"results"`
	// AUCUndefinedForAll is set when no available model has a defined
	// roc_auc; the order is still by f1.
	AUCUndefinedForAll bool `json:"auc_undefined_for_all"`
}

// Best is the top available result.
func (r Ranking) Best() (Result, bool) {
	if len(r.Results) == 0 || !r.Results[0].Available {
		return Result{}, false
	}
	return r.Results[0], true
}

func (r Ranking) Available() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Available {
			out = append(out, res)
		}
	}
	return out
}

// Rank orders available results by f1 descending, ties by registration
// order, and appends unavailable ones after them.
func Rank(results []Result) (Ranking, error) {
	var avail, unavail []Result
	for _, r := range results {
		if r.Available {
			avail = append(avail, r)
		} else {
			unavail = append(unavail, r)
		}
	}
	if len(avail) == 0 {
		return Ranking{}, common.NewError(common.KindFitFailure, "no model trained successfully", nil).
			WithContext("backends", len(results))
	}

	byOrder := func(a, b Result) int { return a.Order - b.Order }
	slices.SortStableFunc(avail, byOrder)
	slices.SortStableFunc(unavail, byOrder)
	slices.SortStableFunc(avail, func(a, b Result) int {
		switch {
		case a.F1 > b.F1:
			return -1
		case a.F1 < b.F1:
			return 1
		default:
			return 0
		}
	})

	undefined := true
	for _, r := range avail {
		if r.ROCAUC != nil {
			undefined = false
			break
		}
	}
	return Ranking{
		Results:            append(avail, unavail...),
		AUCUndefinedForAll: undefined,
	}, nil
}
