package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/tree"

	"golang.org/x/sync/errgroup"
)

type TrainOptions struct {
	NumTrees int
	// MaxFeatures of 0 uses floor(sqrt(p)).
	MaxFeatures    int
	MaxDepth       int
	MinSamplesLeaf int
	Bootstrap      bool
	Seed           uint64
	Workers        int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		NumTrees:  400,
		Bootstrap: true,
		Seed:      42,
	}
}

// Model is a bagged ensemble of gini trees. The positive-class probability is
// the mean leaf positive fraction over all trees.
type Model struct {
	opts  TrainOptions
	trees []*tree.Tree
}

func New(opts TrainOptions) *Model {
	if opts.NumTrees <= 0 {
		opts.NumTrees = DefaultTrainOptions().NumTrees
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Model{opts: opts}
}

func (m *Model) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("bad training shape: %d rows, %d labels", len(x), len(y))
	}
	if !common.IsBinary(y) {
		return errors.New("labels must be 0 or 1")
	}
	p := len(x[0])
	maxFeatures := m.opts.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}
	treeOpts := tree.ClassifierOptions{
		MaxDepth:       m.opts.MaxDepth,
		MinSamplesLeaf: m.opts.MinSamplesLeaf,
		MaxFeatures:    maxFeatures,
	}

	trees := make([]*tree.Tree, m.opts.NumTrees)
	var g errgroup.Group
	g.SetLimit(m.opts.Workers)
	for k := range trees {
		g.Go(func() error {
			// One stream per tree keeps results independent of scheduling.
			rng := rand.New(rand.NewPCG(m.opts.Seed, uint64(k)))
			trees[k] = tree.GrowClassifier(x, y, m.sample(len(x), rng), treeOpts, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.trees = trees
	return nil
}

func (m *Model) sample(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		if m.opts.Bootstrap {
			idx[i] = rng.IntN(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}

func (m *Model) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	if len(m.trees) == 0 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i := range x {
		out[i] = common.Clamp01(tree.Output(m, x[i]))
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
	if len(m.trees) == 0 {
		return 0
	}
	return 1 / float64(len(m.trees))
}

func (m *Model) BaseValue() float64 {
	return 0
}
