// Package training fits the candidate churn models on the customer table,
// keeps the best one by held-out ROC-AUC and writes it with its feature
// column list into the model directory.
package training

import (
	"errors"
	"fmt"

	"churnai/ml"
	"churnai/pipeline"
)

// Candidate is one model type to fit, with optional hyperparameters.
type Candidate struct {
	Type           string `yaml:"type"`
	ml.ModelParams `yaml:",inline"`
}

// Config controls one training run.
type Config struct {
	DataPath  string          `yaml:"data_path"`
	Encoding  string          `yaml:"encoding"`
	Schema    pipeline.Schema `yaml:"schema"`
	TestRatio float64         `yaml:"test_ratio"`
	CVFolds   int             `yaml:"cv_folds"`
	Threshold float64         `yaml:"threshold"`
	Seed      int64           `yaml:"seed"`
	Models    []Candidate     `yaml:"models"`
	// Schedule is an optional 5-field cron expression for retraining.
	Schedule string `yaml:"schedule"`
	// ModelDir is filled from the model section of the main config.
	ModelDir string `yaml:"-"`
}

// DefaultConfig returns the settings of the reference training script.
func DefaultConfig() Config {
	return Config{
		DataPath:  "data/telco_churn_clean.csv",
		Schema:    pipeline.TelcoSchema(),
		TestRatio: 0.2,
		CVFolds:   5,
		Threshold: 0.35,
		Seed:      42,
		Models: []Candidate{
			{Type: ml.TypeLogisticRegression, ModelParams: ml.ModelParams{MaxIter: 1000}},
			{Type: ml.TypeRandomForest, ModelParams: ml.ModelParams{Trees: 100}},
			{Type: ml.TypeDecisionTree, ModelParams: ml.ModelParams{MaxDepth: 6}},
		},
		ModelDir: "models",
	}
}

// ApplyDefaults fills zero fields from DefaultConfig. A zero CVFolds is kept
// and skips cross validation.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.DataPath == "" {
		c.DataPath = def.DataPath
	}
	if c.Schema.TargetColumn == "" {
		c.Schema = def.Schema
	}
	if c.TestRatio == 0 {
		c.TestRatio = def.TestRatio
	}
	if c.Threshold == 0 {
		c.Threshold = def.Threshold
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	if len(c.Models) == 0 {
		c.Models = def.Models
	}
	if c.ModelDir == "" {
		c.ModelDir = def.ModelDir
	}
}

// Validate reports settings a run cannot start with.
func (c Config) Validate() error {
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("test_ratio %v outside (0,1)", c.TestRatio)
	}
	if c.CVFolds == 1 || c.CVFolds < 0 {
		return fmt.Errorf("cv_folds %d: use 0 to skip or at least 2", c.CVFolds)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold %v outside (0,1)", c.Threshold)
	}
	if len(c.Models) == 0 {
		return errors.New("no candidate models")
	}
	for _, m := range c.Models {
		if _, err := ml.NewModel(m.Type, m.ModelParams); err != nil {
			return err
		}
	}
	if c.Schema.PositiveLabel == "" || c.Schema.NegativeLabel == "" {
		return errors.New("schema needs positive and negative target labels")
	}
	return nil
}
