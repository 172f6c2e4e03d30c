package gbt

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/tree"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

type TrainOptions struct {
	Rounds       int
	MaxDepth     int
	LearningRate float64
	// Subsample must stay below 1: boo only grows a round on a row sample.
	Subsample      float64
	ColSample      float64
	Lambda         float64
	Gamma          float64
	MinChildWeight float64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:         400,
		MaxDepth:       4,
		LearningRate:   0.05,
		Subsample:      0.9,
		ColSample:      0.9,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// Model wraps a two-class boo booster. Its trees are re-encoded as
// tree.Tree with the learning rate folded into the leaves, negated for the
// negative-class trees, so the plain sum of tree outputs is the positive
// class log-odds and the booster's softmax equals Sigmoid(Margin).
//
// boo samples rows and columns from the global math/rand/v2 source, so two
// fits on the same data may differ.
type Model struct {
	opts    TrainOptions
	booster *boo.MultiClass
	trees   []*tree.Tree
}

func New(opts TrainOptions) *Model {
	d := DefaultTrainOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = d.Rounds
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = d.MaxDepth
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = d.LearningRate
	}
	if opts.Subsample <= 0 || opts.Subsample >= 1 {
		opts.Subsample = d.Subsample
	}
	if opts.ColSample <= 0 || opts.ColSample > 1 {
		opts.ColSample = 1
	}
	if opts.Lambda < 0 {
		opts.Lambda = d.Lambda
	}
	if opts.Gamma < 0 {
		opts.Gamma = 0
	}
	if opts.MinChildWeight < 1 {
		opts.MinChildWeight = 1
	}
	return &Model{opts: opts}
}

// boosterOptions starts from boo's xgboost defaults. Early stopping is off
// because a stopped class shifts the class index of later trees.
func (m *Model) boosterOptions() *boo.Options {
	o := boo.DefaultXOptions()
	o.Rounds = m.opts.Rounds
	o.MaxDepth = m.opts.MaxDepth
	o.LearningRate = m.opts.LearningRate
	o.SubSample = m.opts.Subsample
	o.ColSubSample = m.opts.ColSample
	o.Lambda = m.opts.Lambda
	o.Gamma = m.opts.Gamma
	o.MinChildWeight = m.opts.MinChildWeight
	o.EarlyStop = 0
	o.Verbose = false
	return o
}

func (m *Model) Fit(x [][]float64, y []float64) error {
	return m.FitContext(context.Background(), x, y)
}

// FitContext checks ctx before and after boosting; boo itself cannot be
// interrupted.
func (m *Model) FitContext(ctx context.Context, x [][]float64, y []float64) (err error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return fmt.Errorf("bad training shape: %d rows, %d labels", n, len(y))
	}
	if !common.IsBinary(y) {
		return fmt.Errorf("labels must be 0 or 1")
	}
	neg, pos := common.ClassCounts(y)
	if neg == 0 || pos == 0 {
		return fmt.Errorf("need both classes in training labels (neg=%d pos=%d)", neg, pos)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := len(x[0])

	opts := m.boosterOptions()
	if err := opts.Check(); err != nil {
		return fmt.Errorf("boosting options: %w", err)
	}
	labels := make([]int, n)
	for i, v := range y {
		labels[i] = int(v)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("boosting panicked: %v", r)
		}
	}()
	booster := boo.NewMultiClass(&utils.DataBunch{Data: x, Labels: labels}, opts)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !slices.Contains(booster.ClassLabels(), 1) {
		return fmt.Errorf("booster has no positive class (labels %v)", booster.ClassLabels())
	}

	var dump strings.Builder
	if err := boo.JSONMultiClass(booster, "softmax", &dump); err != nil {
		return fmt.Errorf("export boosted trees: %w", err)
	}
	trees, err := decodeTrees(dump.String(), 1)
	if err != nil {
		return fmt.Errorf("decode boosted trees: %w", err)
	}
	if len(trees) == 0 {
		return fmt.Errorf("no boosting round ran on %d rows", n)
	}
	for k, t := range trees {
		for _, f := range t.Feature {
			if f >= p {
				return fmt.Errorf("tree %d splits on feature %d of %d", k, f, p)
			}
		}
	}

	m.booster = booster
	m.trees = trees
	for _, row := range x {
		if v := m.Margin(row); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite margin after %d rounds", m.opts.Rounds)
		}
	}
	return nil
}

// Margin is the raw log-odds output for one row.
func (m *Model) Margin(row []float64) float64 {
	return tree.Output(m, row)
}

func (m *Model) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = common.Sigmoid(m.Margin(x[i]))
	}
	return out
}

func (m *Model) Predict(x [][]float64) []float64 {
	probs := m.PredictProba(x)
	for i := range probs {
		probs[i] = common.LabelFromProb(probs[i])
	}
	return probs
}

func (m *Model) Trees() []*tree.Tree {
	return m.trees
}

func (m *Model) Scale() float64 {
	return 1
}

// BaseValue is zero: boo's base score is shared by both classes and cancels
// in the two-class softmax.
func (m *Model) BaseValue() float64 {
	return 0
}
