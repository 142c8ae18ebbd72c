package ml

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotTrained is returned when a model is used before Train or Load.
	ErrNotTrained = errors.New("model not trained")
	// ErrSingleClass is returned when the labels contain only one class.
	ErrSingleClass = errors.New("labels contain a single class")

	// ErrInvalidModel is returned by LoadModel for a payload that decodes but
	// cannot be scored.
	ErrInvalidModel = errors.New("invalid model")

	errInvalidTree = errors.New("invalid tree state")
)

// Binary class labels. Churn is always encoded as PositiveClass.
const (
	NegativeClass = 0
	PositiveClass = 1
)

// MLModel is a binary classifier over dense float feature vectors.
type MLModel interface {
	Type() string
	Train(features [][]float64, labels []int) error
	PredictProba(features []float64) ([]float64, error)
	Classes() []int
	NumFeatures() int
}

// validator is implemented by models that can check a decoded payload.
type validator interface {
	validate() error
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidModel, fmt.Sprintf(format, args...))
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Predict returns the class with the highest probability together with the
// full probability slice. Ties resolve to the lower class index.
func Predict(model MLModel, features []float64) (int, []float64, error) {
	proba, err := model.PredictProba(features)
	if err != nil {
		return 0, nil, err
	}
	classes := model.Classes()
	if len(proba) != len(classes) || len(classes) == 0 {
		return 0, nil, fmt.Errorf("model returned %d probabilities for %d classes", len(proba), len(classes))
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return classes[best], proba, nil
}

// ClassIndex returns the position of label in the model's class list, or -1.
func ClassIndex(model MLModel, label int) int {
	for i, c := range model.Classes() {
		if c == label {
			return i
		}
	}
	return -1
}

func validateTrainingSet(features [][]float64, labels []int) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return 0, errors.New("feature vectors are empty")
	}
	var positives, negatives int
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		switch labels[i] {
		case PositiveClass:
			positives++
		case NegativeClass:
			negatives++
		default:
			return 0, fmt.Errorf("label %d at row %d is not binary", labels[i], i)
		}
	}
	if positives == 0 || negatives == 0 {
		return 0, ErrSingleClass
	}
	return width, nil
}

func checkWidth(features []float64, want int) error {
	if len(features) != want {
		return fmt.Errorf("expected %d features, got %d", want, len(features))
	}
	return nil
}
