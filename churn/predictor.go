package churn

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"churnai/ml"
)

// Artifact file names inside the model directory.
const (
	ModelFile   = "best_model.json"
	ColumnsFile = "feature_columns.json"
)

// Paths locates the two artifacts a Predictor is built from.
type Paths struct {
	Model   string
	Columns string
}

// DefaultPaths returns the artifact paths inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Model:   filepath.Join(dir, ModelFile),
		Columns: filepath.Join(dir, ColumnsFile),
	}
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	ModelType string             `json:"model_type"`
	TrainedAt time.Time          `json:"trained_at"`
	LoadedAt  time.Time          `json:"loaded_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Columns   int                `json:"columns"`
}

// Prediction is the outcome for one record. Label is the model's own class
// decision; Probability is the churn class probability.
type Prediction struct {
	Label       int      `json:"label"`
	Churn       bool     `json:"churn"`
	Probability float64  `json:"churn_probability"`
	Risk        RiskTier `json:"risk"`
}

// Predictor owns a trained model and its feature column list. It never
// changes after construction and may be shared between goroutines.
type Predictor struct {
	model      ml.MLModel
	aligner    *Aligner
	churnIndex int
	info       ModelInfo
}

// NewPredictor checks that model and columns belong together.
func NewPredictor(model ml.MLModel, columns []string, info ModelInfo) (*Predictor, error) {
	aligner, err := NewAligner(columns)
	if err != nil {
		return nil, err
	}
	if n := model.NumFeatures(); n != aligner.Len() {
		return nil, &SchemaMismatchError{
			Reason: fmt.Sprintf("model expects %d features, column list has %d", n, aligner.Len()),
		}
	}
	churnIndex := ml.ClassIndex(model, ml.PositiveClass)
	if churnIndex < 0 {
		return nil, &SchemaMismatchError{
			Reason: fmt.Sprintf("model classes %v do not include churn class %d", model.Classes(), ml.PositiveClass),
		}
	}
	info.ModelType = model.Type()
	info.Columns = aligner.Len()
	return &Predictor{
		model:      model,
		aligner:    aligner,
		churnIndex: churnIndex,
		info:       info,
	}, nil
}

// Load reads both artifacts and builds a Predictor.
func Load(paths Paths) (*Predictor, error) {
	model, artifact, err := ml.LoadModel(paths.Model)
	if err != nil {
		return nil, &LoadError{Path: paths.Model, Err: err}
	}
	columns, err := LoadColumns(paths.Columns)
	if err != nil {
		return nil, err
	}
	return NewPredictor(model, columns, ModelInfo{
		TrainedAt: artifact.TrainedAt,
		LoadedAt:  time.Now().UTC(),
		Metrics:   artifact.Metrics,
	})
}

// LoadColumns reads a feature column list. A missing file is a LoadError, a
// file that is not a JSON list of names is a SchemaMismatchError.
func LoadColumns(path string) ([]string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var columns []string
	if err := json.Unmarshal(payload, &columns); err != nil {
		return nil, &SchemaMismatchError{Reason: fmt.Sprintf("%s is not a list of column names: %v", path, err)}
	}
	return columns, nil
}

// SaveColumns writes a feature column list next to the model.
func SaveColumns(path string, columns []string) error {
	return ml.WriteJSONAtomic(path, columns)
}

// PredictChurn aligns r to the model's columns and scores it.
func (p *Predictor) PredictChurn(r Record) (Prediction, error) {
	label, proba, err := ml.Predict(p.model, p.aligner.Align(r))
	if err != nil {
		return Prediction{}, fmt.Errorf("predict %s: %w", r, err)
	}
	probability := proba[p.churnIndex]
	if math.IsNaN(probability) {
		return Prediction{}, fmt.Errorf("predict %s: %w", r, ErrInvalidProbability)
	}
	// vote averaging can leave a probability an ulp outside [0,1]
	probability = math.Min(1, math.Max(0, probability))
	return Prediction{
		Label:       label,
		Churn:       label == ml.PositiveClass,
		Probability: probability,
		Risk:        ClassifyRisk(probability),
	}, nil
}

func (p *Predictor) Columns() []string { return p.aligner.Columns() }

func (p *Predictor) Info() ModelInfo {
	info := p.info
	if info.Metrics != nil {
		info.Metrics = make(map[string]float64, len(p.info.Metrics))
		for k, v := range p.info.Metrics {
			info.Metrics[k] = v
		}
	}
	return info
}
