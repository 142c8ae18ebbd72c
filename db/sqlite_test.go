package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnai/churn"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "churn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPredictionHistory(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	record := churn.Record{
		Tenure:          12,
		MonthlyCharges:  70,
		TotalCharges:    1000,
		Contract:        "Month-to-month",
		InternetService: "Fiber optic",
		PaymentMethod:   "Electronic check",
	}
	for i, p := range []float64{0.1, 0.45, 0.8} {
		label := 0
		if p > 0.5 {
			label = 1
		}
		require.NoError(t, store.SavePrediction(PredictionRow{
			ID:         []string{"a", "b", "c"}[i],
			Record:     record,
			Prediction: churn.Prediction{Label: label, Probability: p},
			ModelType:  "random_forest",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	history, err := store.RecentPredictions(2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].ID)
	assert.Equal(t, "b", history[1].ID)
	assert.Equal(t, record, history[0].Record)
	assert.True(t, history[0].Prediction.Churn)
	assert.Equal(t, churn.RiskHigh, history[0].Prediction.Risk)
	assert.Equal(t, churn.RiskMedium, history[1].Prediction.Risk)
	assert.True(t, history[0].CreatedAt.Equal(base.Add(2*time.Minute)))
}

func TestSavePredictionRequiresID(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.SavePrediction(PredictionRow{CreatedAt: time.Now()}))
}

func TestTrainingLog(t *testing.T) {
	store := openTestStore(t)
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	require.NoError(t, store.SaveTrainingLog([]TrainingLog{
		{RunID: "r1", ModelName: "logistic_regression", ROCAUC: 0.81, TrainedAt: first, DataPoints: 100},
	}))
	require.NoError(t, store.SaveTrainingLog([]TrainingLog{
		{RunID: "r2", ModelName: "logistic_regression", ROCAUC: 0.83, TrainedAt: second, DataPoints: 120},
		{RunID: "r2", ModelName: "random_forest", ROCAUC: 0.85, Selected: true, TrainedAt: second, DataPoints: 120},
	}))
	require.NoError(t, store.SaveTrainingLog(nil))

	logs, err := store.LoadTrainingLog(10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "r2", logs[0].RunID)
	assert.Equal(t, "logistic_regression", logs[0].ModelName)
	assert.True(t, logs[1].Selected)
	assert.InDelta(t, 0.85, logs[1].ROCAUC, 1e-12)
	assert.Equal(t, "r1", logs[2].RunID)
}

func TestClosedStore(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.RecentPredictions(1)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(store.SaveTrainingLog([]TrainingLog{{}}), ErrClosed))
}
