package iforest

import (
	"errors"
	"fmt"
	"math"
	"time"

	goiforest "github.com/narumiruna/go-iforest/pkg/iforest"
	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold is the anomaly score above which a row counts as out of
// distribution.
const DefaultThreshold = 0.6

type TrainOptions struct {
	NumTrees   int
	SampleSize int
	Threshold  float64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		NumTrees:   100,
		SampleSize: 256,
		Threshold:  DefaultThreshold,
	}
}

// Model scores rows against the training distribution. Inputs are
// standardized with the training means and deviations before scoring.
type Model struct {
	featureNames []string
	means        []float64
	stds         []float64
	threshold    float64
	trainedFrom  time.Time
	trainedTo    time.Time
	forest       *goiforest.IsolationForest
}

// Train fits the detector on the training partition. SampleSize is clamped
// to the number of rows.
func Train(samples [][]float64, featureNames []string, trainedFrom, trainedTo time.Time, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	d := DefaultTrainOptions()
	if opts.NumTrees <= 0 {
		opts.NumTrees = d.NumTrees
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = d.SampleSize
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = d.Threshold
	}
	opts.SampleSize = min(opts.SampleSize, len(samples))

	featureCount := len(samples[0])
	for i := range samples {
		if len(samples[i]) != featureCount {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(samples[i]), featureCount)
		}
	}
	if len(featureNames) != featureCount {
		featureNames = make([]string, featureCount)
		for i := range featureNames {
			featureNames[i] = fmt.Sprintf("f%d", i)
		}
	}

	means, stds := fitNormalizer(samples)
	forest := goiforest.NewWithOptions(goiforest.Options{
		DetectionType: goiforest.DetectionTypeThreshold,
		Threshold:     opts.Threshold,
		NumTrees:      opts.NumTrees,
		SampleSize:    opts.SampleSize,
	})
	forest.Fit(normalizeBatch(samples, means, stds))

	return &Model{
		featureNames: append([]string(nil), featureNames...),
		means:        means,
		stds:         stds,
		threshold:    opts.Threshold,
		trainedFrom:  trainedFrom.UTC(),
		trainedTo:    trainedTo.UTC(),
		forest:       forest,
	}, nil
}

// Scores returns one anomaly score in [0,1] per row; malformed rows score 0.
func (m *Model) Scores(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	if m == nil || m.forest == nil {
		return out
	}
	batch := make([][]float64, 0, len(samples))
	pos := make([]int, 0, len(samples))
	for i, s := range samples {
		if len(s) != len(m.means) {
			continue
		}
		batch = append(batch, normalize(s, m.means, m.stds))
		pos = append(pos, i)
	}
	if len(batch) == 0 {
		return out
	}
	scores := m.forest.Score(batch)
	for k, i := range pos {
		if k < len(scores) {
			out[i] = clampScore(scores[k])
		}
	}
	return out
}

func (m *Model) Threshold() float64 {
	return m.threshold
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.featureNames...)
}

// Shift compares anomaly scores of the held-out rows with those of the rows
// the detector was fit on.
type Shift struct {
	TrainFrom         time.Time `json:"train_from"`
	TrainTo           time.Time `json:"train_to"`
	TrainMean         float64   `json:"train_mean_score"`
	TestMean          float64   `json:"test_mean_score"`
	TrainAnomalyShare float64   `json:"train_anomaly_share"`
	TestAnomalyShare  float64   `json:"test_anomaly_share"`
	Threshold         float64   `json:"threshold"`
}

// Drift is the increase in mean anomaly score from train to test.
func (s Shift) Drift() float64 {
	return s.TestMean - s.TrainMean
}

func (m *Model) Compare(train, test [][]float64) (Shift, error) {
	if len(train) == 0 || len(test) == 0 {
		return Shift{}, errors.New("both partitions must be non-empty")
	}
	trainScores := m.Scores(train)
	testScores := m.Scores(test)
	return Shift{
		TrainFrom:         m.trainedFrom,
		TrainTo:           m.trainedTo,
		TrainMean:         stat.Mean(trainScores, nil),
		TestMean:          stat.Mean(testScores, nil),
		TrainAnomalyShare: share(trainScores, m.threshold),
		TestAnomalyShare:  share(testScores, m.threshold),
		Threshold:         m.threshold,
	}, nil
}

func share(scores []float64, threshold float64) float64 {
	n := 0
	for _, s := range scores {
		if s >= threshold {
			n++
		}
	}
	return float64(n) / float64(len(scores))
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func fitNormalizer(samples [][]float64) ([]float64, []float64) {
	featureCount := len(samples[0])
	means := make([]float64, featureCount)
	stds := make([]float64, featureCount)
	col := make([]float64, len(samples))
	for j := 0; j < featureCount; j++ {
		for i := range samples {
			col[i] = samples[i][j]
		}
		means[j], stds[j] = stat.PopMeanStdDev(col, nil)
		if stds[j] == 0 || math.IsNaN(stds[j]) {
			stds[j] = 1
		}
	}
	return means, stds
}

func normalizeBatch(samples [][]float64, means, stds []float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i := range samples {
		out[i] = normalize(samples[i], means, stds)
	}
	return out
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}
