package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultMaxIter      = 1000
	defaultLearningRate = 0.1
	defaultC            = 1.0
	gradientTolerance   = 1e-6
)

// LogisticRegression is an L2-regularized binary logistic model fitted by
// batch gradient descent on standardized inputs. The standardization is part
// of the model, so callers pass raw feature vectors.
type LogisticRegression struct {
	MaxIter      int       `json:"max_iter"`
	LearningRate float64   `json:"learning_rate"`
	C            float64   `json:"c"`
	Means        []float64 `json:"means"`
	Scales       []float64 `json:"scales"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Iterations   int       `json:"iterations"`
}

func NewLogisticRegression(maxIter int) *LogisticRegression {
	return &LogisticRegression{MaxIter: maxIter}
}

func (lr *LogisticRegression) Type() string { return TypeLogisticRegression }

func (lr *LogisticRegression) Classes() []int { return []int{NegativeClass, PositiveClass} }

func (lr *LogisticRegression) NumFeatures() int { return len(lr.Weights) }

func (lr *LogisticRegression) validate() error {
	n := len(lr.Weights)
	if len(lr.Means) != n || len(lr.Scales) != n {
		return invalidf("%d weights with %d means and %d scales", n, len(lr.Means), len(lr.Scales))
	}
	if !finite(lr.Bias) || !finite(lr.Weights...) || !finite(lr.Means...) {
		return invalidf("non-finite coefficient")
	}
	for j, scale := range lr.Scales {
		if !(scale > 0) || math.IsInf(scale, 0) {
			return invalidf("scale %d is %v", j, scale)
		}
	}
	return nil
}

func (lr *LogisticRegression) Train(features [][]float64, labels []int) error {
	width, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if lr.MaxIter <= 0 {
		lr.MaxIter = defaultMaxIter
	}
	if lr.LearningRate <= 0 {
		lr.LearningRate = defaultLearningRate
	}
	if lr.C <= 0 {
		lr.C = defaultC
	}

	n := len(features)
	lr.Means = make([]float64, width)
	lr.Scales = make([]float64, width)
	column := make([]float64, n)
	for j := 0; j < width; j++ {
		for i := range features {
			column[i] = features[i][j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		lr.Means[j] = mean
		lr.Scales[j] = std
	}

	x := mat.NewDense(n, width, nil)
	for i, row := range features {
		for j, v := range row {
			x.Set(i, j, (v-lr.Means[j])/lr.Scales[j])
		}
	}
	y := make([]float64, n)
	for i, label := range labels {
		y[i] = float64(label)
	}

	w := mat.NewVecDense(width, nil)
	z := mat.NewVecDense(n, nil)
	residual := make([]float64, n)
	r := mat.NewVecDense(n, residual)
	grad := mat.NewVecDense(width, nil)
	lambda := 1 / (lr.C * float64(n))
	var bias float64

	lr.Iterations = 0
	for iter := 0; iter < lr.MaxIter; iter++ {
		lr.Iterations++
		z.MulVec(x, w)
		for i := 0; i < n; i++ {
			residual[i] = sigmoid(z.AtVec(i)+bias) - y[i]
		}
		grad.MulVec(x.T(), r)
		grad.ScaleVec(1/float64(n), grad)
		grad.AddScaledVec(grad, lambda, w)
		biasGrad := floats.Sum(residual) / float64(n)

		w.AddScaledVec(w, -lr.LearningRate, grad)
		bias -= lr.LearningRate * biasGrad
		if math.Hypot(mat.Norm(grad, 2), biasGrad) < gradientTolerance {
			break
		}
	}

	lr.Weights = make([]float64, width)
	for j := range lr.Weights {
		lr.Weights[j] = w.AtVec(j)
	}
	lr.Bias = bias
	return nil
}

func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(lr.Weights) == 0 {
		return nil, ErrNotTrained
	}
	if err := checkWidth(features, len(lr.Weights)); err != nil {
		return nil, err
	}
	scaled := make([]float64, len(features))
	for j, v := range features {
		scaled[j] = (v - lr.Means[j]) / lr.Scales[j]
	}
	p := sigmoid(floats.Dot(scaled, lr.Weights) + lr.Bias)
	return []float64{1 - p, p}, nil
}

// FeatureImportance returns the normalized magnitude of the standardized
// coefficients.
func (lr *LogisticRegression) FeatureImportance() []float64 {
	out := make([]float64, len(lr.Weights))
	for j, w := range lr.Weights {
		out[j] = math.Abs(w)
	}
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
