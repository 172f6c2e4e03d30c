package logreg

import (
	"errors"
	"fmt"
	"math"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

var ErrNotConverged = errors.New("logistic regression did not converge")

type TrainOptions struct {
	// C is the inverse L2 regularization strength; the intercept is not penalized.
	C       float64
	MaxIter int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		C:       1.0,
		MaxIter: 2000,
	}
}

// Model is an L2-regularized binary logistic regression fit with L-BFGS.
type Model struct {
	opts      TrainOptions
	coef      []float64
	intercept float64
	fitted    bool
	iters     int
}

func New(opts TrainOptions) *Model {
	if opts.C <= 0 {
		opts.C = DefaultTrainOptions().C
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultTrainOptions().MaxIter
	}
	return &Model{opts: opts}
}

func (m *Model) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("bad training shape: %d rows, %d labels", len(x), len(y))
	}
	if neg, pos := common.ClassCounts(y); neg == 0 || pos == 0 {
		return fmt.Errorf("need both classes in training labels (neg=%d pos=%d)", neg, pos)
	}
	p := len(x[0])
	for i := range x {
		if len(x[i]) != p {
			return fmt.Errorf("row %d has %d features, want %d", i, len(x[i]), p)
		}
	}

	// Optimize on standardized columns; coefficients are mapped back to the
	// raw scale afterwards so Margin works on unscaled rows.
	mu, sigma := standardize(x, p)
	z := make([][]float64, len(x))
	for i := range x {
		z[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			z[i][j] = (x[i][j] - mu[j]) / sigma[j]
		}
	}

	// params = [w_0..w_{p-1}, b]
	lambda := 1 / m.opts.C
	resid := make([]float64, len(z))
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			w, b := params[:p], params[p]
			loss := 0.5 * lambda * floats.Dot(w, w)
			for i := range z {
				loss += logLoss(floats.Dot(w, z[i])+b, y[i])
			}
			return loss
		},
		Grad: func(grad, params []float64) {
			w, b := params[:p], params[p]
			for i := range z {
				resid[i] = common.Sigmoid(floats.Dot(w, z[i])+b) - y[i]
			}
			for j := 0; j < p; j++ {
				g := lambda * w[j]
				for i := range z {
					g += resid[i] * z[i][j]
				}
				grad[j] = g
			}
			grad[p] = floats.Sum(resid)
		},
	}

	result, err := optimize.Minimize(problem, make([]float64, p+1), &optimize.Settings{
		MajorIterations:   m.opts.MaxIter,
		GradientThreshold: 1e-6,
	}, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if result.Status == optimize.IterationLimit {
		return fmt.Errorf("%w after %d iterations", ErrNotConverged, result.MajorIterations)
	}
	// A stalled line search at a finite optimum is accepted as converged.
	if err != nil && result.Status != optimize.Failure {
		return fmt.Errorf("optimize: %w", err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("non-finite coefficients")
		}
	}

	coef := make([]float64, p)
	intercept := result.X[p]
	for j := 0; j < p; j++ {
		coef[j] = result.X[j] / sigma[j]
		intercept -= coef[j] * mu[j]
	}

	m.coef = coef
	m.intercept = intercept
	m.iters = result.MajorIterations
	m.fitted = true
	return nil
}

// Margin returns the log-odds for one row.
func (m *Model) Margin(row []float64) float64 {
	if !m.fitted || len(row) != len(m.coef) {
		return 0
	}
	return floats.Dot(m.coef, row) + m.intercept
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

func (m *Model) Coefficients() []float64 {
	return append([]float64(nil), m.coef...)
}

func (m *Model) Intercept() float64 {
	return m.intercept
}

func (m *Model) Iterations() int {
	return m.iters
}

func standardize(x [][]float64, p int) (mu, sigma []float64) {
	mu = make([]float64, p)
	sigma = make([]float64, p)
	col := make([]float64, len(x))
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mu[j], sigma[j] = stat.PopMeanStdDev(col, nil)
		if sigma[j] == 0 || math.IsNaN(sigma[j]) {
			sigma[j] = 1
		}
	}
	return mu, sigma
}

// logLoss is log(1+exp(z)) - y*z, evaluated without overflow.
func logLoss(z, y float64) float64 {
	var softplus float64
	if z > 0 {
		softplus = z + math.Log1p(math.Exp(-z))
	} else {
		softplus = math.Log1p(math.Exp(z))
	}
	return softplus - y*z
}
