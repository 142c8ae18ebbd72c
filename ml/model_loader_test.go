package ml

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadKeepsPredictions(t *testing.T) {
	features, labels := separableData(150, 6)
	dir := t.TempDir()
	trainedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, modelType := range []string{TypeLogisticRegression, TypeDecisionTree} {
		model, err := NewModel(modelType, ModelParams{MaxIter: 100, MaxDepth: 4})
		require.NoError(t, err)
		require.NoError(t, model.Train(features, labels))

		path := filepath.Join(dir, modelType+".json")
		require.NoError(t, SaveModel(path, model, trainedAt, map[string]float64{"roc_auc": 0.9}))

		loaded, artifact, err := LoadModel(path)
		require.NoError(t, err)
		assert.Equal(t, modelType, artifact.ModelType)
		assert.Equal(t, []int{0, 1}, artifact.Classes)
		assert.True(t, trainedAt.Equal(artifact.TrainedAt))
		assert.Equal(t, 0.9, artifact.Metrics["roc_auc"])

		for _, row := range features[:10] {
			want, _ := model.PredictProba(row)
			got, err := loaded.PredictProba(row)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadModel(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	_, _, err = LoadModel(corrupt)
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"model_type":"xgboost","model":{}}`), 0o600))
	_, _, err = LoadModel(unknown)
	assert.ErrorContains(t, err, "unsupported model type")

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"model_type":"logistic_regression","model":{}}`), 0o600))
	_, _, err = LoadModel(empty)
	assert.ErrorIs(t, err, ErrNotTrained)

	inconsistent := map[string]string{
		"weights without scaling": `{"model_type":"logistic_regression","model":{"weights":[0.1,0.1],"bias":0}}`,
		"zero scale":              `{"model_type":"logistic_regression","model":{"means":[0,0],"scales":[1,0],"weights":[0.1,0.1]}}`,
		"tree self loop": `{"model_type":"decision_tree","model":{"features":2,"nodes":[
			{"feature_idx":0,"threshold":1,"left_child":1,"right_child":2},
			{"feature_idx":1,"threshold":0,"left_child":1,"right_child":2},
			{"is_leaf":true,"probability":[0.5,0.5]}]}}`,
		"tree feature out of range": `{"model_type":"decision_tree","model":{"features":2,"nodes":[
			{"feature_idx":5,"threshold":1,"left_child":1,"right_child":2},
			{"is_leaf":true,"probability":[1,0]},
			{"is_leaf":true,"probability":[0,1]}]}}`,
		"tree leaf without both classes": `{"model_type":"decision_tree","model":{"features":1,"nodes":[{"is_leaf":true,"probability":[1]}]}}`,
		"forest without trees":           `{"model_type":"random_forest","model":{"features":3}}`,
	}
	for name, payload := range inconsistent {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
			model, _, err := LoadModel(path)
			assert.ErrorIs(t, err, ErrInvalidModel)
			assert.Nil(t, model)
		})
	}
}

func TestSaveModelRejectsUntrained(t *testing.T) {
	err := SaveModel(filepath.Join(t.TempDir(), "m.json"), NewLogisticRegression(10), time.Now(), nil)
	assert.ErrorIs(t, err, ErrNotTrained)
}
