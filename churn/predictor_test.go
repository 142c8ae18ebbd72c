package churn

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnai/ml"
)

func TestPredictChurnEndToEnd(t *testing.T) {
	paths := writeArtifacts(t, t.TempDir(), trainedModel(t), testColumns)

	p, err := Load(paths)
	require.NoError(t, err)

	first, err := p.PredictChurn(sampleRecord)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first.Probability, 0.0)
	assert.LessOrEqual(t, first.Probability, 1.0)
	assert.Equal(t, ClassifyRisk(first.Probability), first.Risk)
	assert.Equal(t, first.Label == ml.PositiveClass, first.Churn)

	second, err := p.PredictChurn(sampleRecord)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	loyal := Record{Tenure: 70, MonthlyCharges: 25, TotalCharges: 1750, Contract: "Two year", InternetService: "No", PaymentMethod: "Mailed check"}
	low, err := p.PredictChurn(loyal)
	require.NoError(t, err)
	assert.Less(t, low.Probability, first.Probability)

	info := p.Info()
	assert.Equal(t, ml.TypeLogisticRegression, info.ModelType)
	assert.Equal(t, len(testColumns), info.Columns)
	assert.InDelta(t, 0.84, info.Metrics["roc_auc"], 1e-9)
}

func TestPredictChurnClampsProbability(t *testing.T) {
	p, err := NewPredictor(newFixedModel(1.0000001), testColumns, ModelInfo{})
	require.NoError(t, err)

	got, err := p.PredictChurn(sampleRecord)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Probability)
	assert.Equal(t, RiskHigh, got.Risk)
	assert.True(t, got.Churn)
}

func TestPredictChurnRejectsNaN(t *testing.T) {
	p, err := NewPredictor(newFixedModel(math.NaN()), testColumns, ModelInfo{})
	require.NoError(t, err)

	_, err = p.PredictChurn(sampleRecord)
	assert.ErrorIs(t, err, ErrInvalidProbability)
}

func TestPredictChurnUsesChurnClassPosition(t *testing.T) {
	model := newFixedModel(0.25)
	model.classes = []int{ml.PositiveClass, ml.NegativeClass}
	p, err := NewPredictor(model, testColumns, ModelInfo{})
	require.NoError(t, err)

	got, err := p.PredictChurn(sampleRecord)
	require.NoError(t, err)
	// index 0 now holds churn: 1-0.25
	assert.InDelta(t, 0.75, got.Probability, 1e-12)
	assert.Equal(t, ml.PositiveClass, got.Label)
}

func TestNewPredictorSchemaMismatch(t *testing.T) {
	wrongWidth := newFixedModel(0.5)
	wrongWidth.width = 3
	noChurn := newFixedModel(0.5)
	noChurn.classes = []int{0, 2}

	for name, model := range map[string]ml.MLModel{"width": wrongWidth, "classes": noChurn} {
		t.Run(name, func(t *testing.T) {
			_, err := NewPredictor(model, testColumns, ModelInfo{})
			var mismatch *SchemaMismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		paths := tempPaths(t)
		_, err := Load(paths)
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr), "got %v", err)
		assert.Equal(t, paths.Model, loadErr.Path)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("corrupt model", func(t *testing.T) {
		dir := t.TempDir()
		paths := writeArtifacts(t, dir, trainedModel(t), testColumns)
		require.NoError(t, os.WriteFile(paths.Model, []byte("{not json"), 0o644))
		_, err := Load(paths)
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr), "got %v", err)
	})

	t.Run("inconsistent model", func(t *testing.T) {
		dir := t.TempDir()
		paths := writeArtifacts(t, dir, trainedModel(t), testColumns)
		artifact := `{"model_type":"logistic_regression","model":{"weights":[0.1,0.1,0.1,0.1,0.1,0.1,0.1,0.1,0.1,0.1,0.1],"bias":0}}`
		require.NoError(t, os.WriteFile(paths.Model, []byte(artifact), 0o644))
		_, err := Load(paths)
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr), "got %v", err)
		assert.Equal(t, paths.Model, loadErr.Path)
		assert.ErrorIs(t, err, ml.ErrInvalidModel)
	})

	t.Run("missing columns", func(t *testing.T) {
		dir := t.TempDir()
		paths := writeArtifacts(t, dir, trainedModel(t), testColumns)
		require.NoError(t, os.Remove(paths.Columns))
		_, err := Load(paths)
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr), "got %v", err)
		assert.Equal(t, paths.Columns, loadErr.Path)
	})

	t.Run("malformed columns", func(t *testing.T) {
		dir := t.TempDir()
		paths := writeArtifacts(t, dir, trainedModel(t), testColumns)
		require.NoError(t, os.WriteFile(paths.Columns, []byte(`{"tenure": 1}`), 0o644))
		_, err := Load(paths)
		var mismatch *SchemaMismatchError
		require.True(t, errors.As(err, &mismatch), "got %v", err)
	})

	t.Run("column count differs", func(t *testing.T) {
		dir := t.TempDir()
		paths := writeArtifacts(t, dir, trainedModel(t), testColumns[:5])
		_, err := Load(paths)
		var mismatch *SchemaMismatchError
		require.True(t, errors.As(err, &mismatch), "got %v", err)
	})
}

func TestSaveColumnsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ColumnsFile)
	require.NoError(t, SaveColumns(path, testColumns))
	got, err := LoadColumns(path)
	require.NoError(t, err)
	assert.Equal(t, testColumns, got)
}
