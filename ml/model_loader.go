package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	TypeLogisticRegression = "logistic_regression"
	TypeRandomForest       = "random_forest"
	TypeDecisionTree       = "decision_tree"
)

// ModelTypes lists the model types LoadModel understands.
func ModelTypes() []string {
	return []string{TypeLogisticRegression, TypeRandomForest, TypeDecisionTree}
}

// ModelParams are the hyperparameters accepted by NewModel. Zero values pick
// each model's defaults.
type ModelParams struct {
	MaxIter  int `yaml:"max_iter" json:"max_iter,omitempty"`
	Trees    int `yaml:"trees" json:"trees,omitempty"`
	MaxDepth int `yaml:"max_depth" json:"max_depth,omitempty"`
}

// NewModel returns an untrained model of the given type.
func NewModel(modelType string, params ModelParams) (MLModel, error) {
	switch modelType {
	case TypeLogisticRegression:
		return NewLogisticRegression(params.MaxIter), nil
	case TypeRandomForest:
		return NewRandomForest(params.Trees), nil
	case TypeDecisionTree:
		return NewDecisionTree(params.MaxDepth), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

// Artifact is the on-disk envelope of a trained model.
type Artifact struct {
	ModelType string             `json:"model_type"`
	Classes   []int              `json:"classes"`
	TrainedAt time.Time          `json:"trained_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Model     json.RawMessage    `json:"model"`
}

// SaveModel writes model and its metadata to path.
func SaveModel(path string, model MLModel, trainedAt time.Time, metrics map[string]float64) error {
	if model.NumFeatures() == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode %s: %w", model.Type(), err)
	}
	return WriteJSONAtomic(path, Artifact{
		ModelType: model.Type(),
		Classes:   model.Classes(),
		TrainedAt: trainedAt.UTC(),
		Metrics:   metrics,
		Model:     payload,
	})
}

// LoadModel reads a model written by SaveModel.
func LoadModel(path string) (MLModel, *Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, nil, fmt.Errorf("decode artifact: %w", err)
	}
	model, err := NewModel(artifact.ModelType, ModelParams{})
	if err != nil {
		return nil, nil, err
	}
	if len(artifact.Model) == 0 {
		return nil, nil, fmt.Errorf("artifact has no %s payload", artifact.ModelType)
	}
	if err := json.Unmarshal(artifact.Model, model); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", artifact.ModelType, err)
	}
	if model.NumFeatures() == 0 {
		return nil, nil, ErrNotTrained
	}
	if v, ok := model.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", artifact.ModelType, err)
		}
	}
	return model, &artifact, nil
}

// WriteJSONAtomic encodes v next to path and renames it into place, so
// readers never observe a partially written file.
func WriteJSONAtomic(path string, v interface{}) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
