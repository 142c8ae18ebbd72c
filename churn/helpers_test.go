package churn

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"churnai/ml"
)

var testColumns = []string{
	"SeniorCitizen",
	FieldTenure,
	FieldMonthlyCharges,
	FieldTotalCharges,
	"Contract_One year",
	"Contract_Two year",
	"InternetService_Fiber optic",
	"InternetService_No",
	"PaymentMethod_Credit card (automatic)",
	"PaymentMethod_Electronic check",
	"PaymentMethod_Mailed check",
}

var sampleRecord = Record{
	Tenure:          12,
	MonthlyCharges:  70,
	TotalCharges:    1000,
	Contract:        "Month-to-month",
	InternetService: "Fiber optic",
	PaymentMethod:   "Electronic check",
}

// fixedModel returns the same churn probability for every input.
type fixedModel struct {
	width   int
	classes []int
	churn   float64
}

func (m *fixedModel) Type() string                   { return "fixed" }
func (m *fixedModel) Train([][]float64, []int) error { return nil }
func (m *fixedModel) Classes() []int                 { return m.classes }
func (m *fixedModel) NumFeatures() int               { return m.width }
func (m *fixedModel) PredictProba([]float64) ([]float64, error) {
	return []float64{1 - m.churn, m.churn}, nil
}

func newFixedModel(churn float64) *fixedModel {
	return &fixedModel{width: len(testColumns), classes: []int{ml.NegativeClass, ml.PositiveClass}, churn: churn}
}

// trainedModel fits a logistic regression on synthetic customers where short
// month-to-month fiber contracts churn.
func trainedModel(t *testing.T) ml.MLModel {
	t.Helper()
	aligner, err := NewAligner(testColumns)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	var features [][]float64
	var labels []int
	for i := 0; i < 400; i++ {
		r := Record{
			Tenure:          rng.Intn(73),
			MonthlyCharges:  20 + rng.Float64()*100,
			Contract:        Contracts[rng.Intn(len(Contracts))],
			InternetService: InternetServices[rng.Intn(len(InternetServices))],
			PaymentMethod:   PaymentMethods[rng.Intn(len(PaymentMethods))],
		}
		r.TotalCharges = float64(r.Tenure) * r.MonthlyCharges
		risk := 0.0
		if r.Contract == "Month-to-month" {
			risk += 2
		}
		if r.InternetService == "Fiber optic" {
			risk += 1
		}
		if r.Tenure < 12 {
			risk += 1
		}
		label := ml.NegativeClass
		if risk+rng.Float64() > 2.5 {
			label = ml.PositiveClass
		}
		features = append(features, aligner.Align(r))
		labels = append(labels, label)
	}

	model := ml.NewLogisticRegression(300)
	require.NoError(t, model.Train(features, labels))
	return model
}

// writeArtifacts saves model and columns into a fresh model directory.
func writeArtifacts(t *testing.T, dir string, model ml.MLModel, columns []string) Paths {
	t.Helper()
	paths := DefaultPaths(dir)
	require.NoError(t, ml.SaveModel(paths.Model, model, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), map[string]float64{"roc_auc": 0.84}))
	require.NoError(t, SaveColumns(paths.Columns, columns))
	return paths
}

func tempPaths(t *testing.T) Paths {
	return DefaultPaths(filepath.Join(t.TempDir(), "models"))
}
