package registry

import (
	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/forest"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/gbt"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/logreg"
)

// Options sizes the built-in backends. Zero values fall back to each
// backend's defaults. Seed drives the forest only; boo draws from the global
// random source.
type Options struct {
	LogRegMaxIter int
	ForestTrees   int
	GBTRounds     int
	Seed          uint64
	EnableGBT     bool
}

func DefaultOptions() Options {
	return Options{
		LogRegMaxIter: logreg.DefaultTrainOptions().MaxIter,
		ForestTrees:   forest.DefaultTrainOptions().NumTrees,
		GBTRounds:     gbt.DefaultTrainOptions().Rounds,
		Seed:          42,
		EnableGBT:     true,
	}
}

// Default registers logistic regression, random forest and, when enabled,
// gradient boosting, in that order.
func Default(opts Options) (*Registry, error) {
	r := New()

	lr := logreg.DefaultTrainOptions()
	if opts.LogRegMaxIter > 0 {
		lr.MaxIter = opts.LogRegMaxIter
	}
	if err := r.Register(Entry{
		Name:         common.ModelKeyLogReg,
		Family:       domain.FamilyLinear,
		Capabilities: CapPredict | CapProbability,
		New: func() (Classifier, error) {
			return logreg.New(lr), nil
		},
	}); err != nil {
		return nil, err
	}

	rf := forest.DefaultTrainOptions()
	if opts.ForestTrees > 0 {
		rf.NumTrees = opts.ForestTrees
	}
	rf.Seed = opts.Seed
	if err := r.Register(Entry{
		Name:         common.ModelKeyRandomForest,
		Family:       domain.FamilyTreeEnsemble,
		Capabilities: CapPredict | CapProbability,
		New: func() (Classifier, error) {
			return forest.New(rf), nil
		},
	}); err != nil {
		return nil, err
	}

	if !opts.EnableGBT {
		r.MarkUnavailable(common.ModelKeyGradientBoosting, "disabled by configuration")
		return r, nil
	}
	gb := gbt.DefaultTrainOptions()
	if opts.GBTRounds > 0 {
		gb.Rounds = opts.GBTRounds
	}
	if err := r.Register(Entry{
		Name:         common.ModelKeyGradientBoosting,
		Family:       domain.FamilyGradientBoosted,
		Capabilities: CapPredict | CapProbability,
		Optional:     true,
		New: func() (Classifier, error) {
			return gbt.New(gb), nil
		},
	}); err != nil {
		return nil, err
	}
	return r, nil
}
