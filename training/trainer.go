package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"churnai/churn"
	"churnai/db"
	"churnai/ml"
	"churnai/pipeline"
)

// LogStore receives one row per candidate of every run.
type LogStore interface {
	SaveTrainingLog(entries []db.TrainingLog) error
}

// Importance is one feature's share of a model's importance.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// Result is the outcome for one candidate model.
type Result struct {
	Model      string        `json:"model"`
	CVScores   []float64     `json:"cv_scores,omitempty"`
	CVMean     float64       `json:"cv_roc_auc"`
	Evaluation ml.Evaluation `json:"evaluation"`
	Importance []Importance  `json:"importance,omitempty"`
	Selected   bool          `json:"selected"`
	Err        string        `json:"error,omitempty"`

	model ml.MLModel
}

// Report summarises a training run.
type Report struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Cleaning   pipeline.CleaningStats `json:"cleaning"`
	Rows       int                    `json:"rows"`
	Positives  int                    `json:"positives"`
	TrainRows  int                    `json:"train_rows"`
	TestRows   int                    `json:"test_rows"`
	Columns    []string               `json:"columns"`
	Results    []Result               `json:"results"`
	Best       string                 `json:"best"`
	Paths      churn.Paths            `json:"-"`
}

// BestResult returns the selected candidate, or nil.
func (r *Report) BestResult() *Result {
	for i := range r.Results {
		if r.Results[i].Selected {
			return &r.Results[i]
		}
	}
	return nil
}

// Trainer runs the training pipeline.
type Trainer struct {
	cfg    Config
	logger *zap.Logger
	store  LogStore
	now    func() time.Time
}

// NewTrainer applies defaults to cfg. store may be nil.
func NewTrainer(cfg Config, logger *zap.Logger, store LogStore) (*Trainer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("training config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{cfg: cfg, logger: logger, store: store, now: time.Now}, nil
}

func (t *Trainer) Config() Config { return t.cfg }

// Run reads and encodes the data, fits every candidate, saves the best
// model and records the run.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: t.now().UTC(),
		Paths:     churn.DefaultPaths(t.cfg.ModelDir),
	}
	log := t.logger.With(zap.String("run_id", report.RunID))
	log.Info("training started", zap.String("data", t.cfg.DataPath))

	dataset, err := t.load(report)
	if err != nil {
		return report, err
	}
	log.Info("dataset encoded",
		zap.Int("rows", report.Rows),
		zap.Int("positives", report.Positives),
		zap.Int("columns", len(report.Columns)),
		zap.Int("dropped", report.Cleaning.DroppedTarget),
		zap.Int("filled", report.Cleaning.FilledBlanks))

	trainRows, testRows := ml.StratifiedSplit(dataset.Labels, t.cfg.TestRatio, t.cfg.Seed)
	trainX, trainY := ml.Subset(dataset.Features, dataset.Labels, trainRows)
	testX, testY := ml.Subset(dataset.Features, dataset.Labels, testRows)
	report.TrainRows, report.TestRows = len(trainRows), len(testRows)

	for _, candidate := range t.cfg.Models {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := t.fit(candidate, dataset.Columns, trainX, trainY, testX, testY)
		if result.Err != "" {
			log.Warn("candidate failed", zap.String("model", candidate.Type), zap.String("error", result.Err))
		} else {
			e := result.Evaluation
			log.Info("candidate evaluated",
				zap.String("model", candidate.Type),
				zap.Float64("cv_roc_auc", result.CVMean),
				zap.Float64("accuracy", e.Accuracy),
				zap.Float64("precision", e.Precision),
				zap.Float64("recall", e.Recall),
				zap.Float64("roc_auc", e.ROCAUC),
				zap.Any("confusion", e.Confusion.Matrix()))
			for _, imp := range topImportance(result.Importance, 10) {
				log.Debug("feature importance", zap.String("model", candidate.Type),
					zap.String("feature", imp.Feature), zap.Float64("score", imp.Score))
			}
		}
		report.Results = append(report.Results, result)
	}

	best := -1
	for i, r := range report.Results {
		if r.Err != "" {
			continue
		}
		if best < 0 || r.Evaluation.ROCAUC > report.Results[best].Evaluation.ROCAUC {
			best = i
		}
	}
	if best < 0 {
		return report, errors.New("every candidate model failed")
	}
	report.Results[best].Selected = true
	winner := &report.Results[best]
	report.Best = winner.Model
	report.FinishedAt = t.now().UTC()

	metrics := winner.Evaluation.Metrics()
	metrics["cv_roc_auc"] = winner.CVMean
	if err := churn.SaveColumns(report.Paths.Columns, dataset.Columns); err != nil {
		return report, fmt.Errorf("save feature columns: %w", err)
	}
	if err := ml.SaveModel(report.Paths.Model, winner.model, report.FinishedAt, metrics); err != nil {
		return report, fmt.Errorf("save model: %w", err)
	}
	log.Info("best model saved",
		zap.String("model", winner.Model),
		zap.Float64("roc_auc", winner.Evaluation.ROCAUC),
		zap.String("path", report.Paths.Model))

	if t.store != nil {
		if err := t.store.SaveTrainingLog(logEntries(report)); err != nil {
			log.Warn("training log not saved", zap.Error(err))
		}
	}
	return report, nil
}

func (t *Trainer) load(report *Report) (*pipeline.Dataset, error) {
	table, err := pipeline.ReadCSV(t.cfg.DataPath, t.cfg.Encoding)
	if err != nil {
		return nil, err
	}
	cleaned, stats, err := pipeline.NewDataCleaner(t.cfg.Schema).Clean(table)
	report.Cleaning = stats
	if err != nil {
		return nil, err
	}
	dataset, err := pipeline.Encode(cleaned, t.cfg.Schema)
	if err != nil {
		return nil, err
	}
	report.Rows = len(dataset.Labels)
	report.Positives = dataset.Positives()
	report.Columns = dataset.Columns
	if report.Positives == 0 || report.Positives == report.Rows {
		return nil, ml.ErrSingleClass
	}
	return dataset, nil
}

func (t *Trainer) fit(candidate Candidate, columns []string, trainX [][]float64, trainY []int, testX [][]float64, testY []int) Result {
	result := Result{Model: candidate.Type}
	newModel := func() (ml.MLModel, error) { return ml.NewModel(candidate.Type, candidate.ModelParams) }

	if t.cfg.CVFolds > 1 {
		scores, err := ml.CrossValidate(newModel, trainX, trainY, t.cfg.CVFolds)
		if err != nil {
			result.Err = fmt.Sprintf("cross validation: %v", err)
			return result
		}
		result.CVScores = scores
		result.CVMean = stat.Mean(scores, nil)
	}

	model, err := newModel()
	if err != nil {
		result.Err = err.Error()
		return result
	}
	if err := model.Train(trainX, trainY); err != nil {
		result.Err = err.Error()
		return result
	}
	eval, err := ml.Evaluate(model, testX, testY, t.cfg.Threshold)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.Evaluation = eval
	result.model = model

	if ranked, ok := model.(interface{ FeatureImportance() []float64 }); ok {
		scores := ranked.FeatureImportance()
		for i, score := range scores {
			if i < len(columns) {
				result.Importance = append(result.Importance, Importance{Feature: columns[i], Score: score})
			}
		}
		sort.SliceStable(result.Importance, func(a, b int) bool {
			return result.Importance[a].Score > result.Importance[b].Score
		})
	}
	return result
}

func topImportance(all []Importance, n int) []Importance {
	if len(all) > n {
		return all[:n]
	}
	return all
}

func logEntries(report *Report) []db.TrainingLog {
	entries := make([]db.TrainingLog, 0, len(report.Results))
	for _, r := range report.Results {
		if r.Err != "" {
			continue
		}
		entries = append(entries, db.TrainingLog{
			RunID:      report.RunID,
			ModelName:  r.Model,
			Accuracy:   r.Evaluation.Accuracy,
			Precision:  r.Evaluation.Precision,
			Recall:     r.Evaluation.Recall,
			ROCAUC:     r.Evaluation.ROCAUC,
			CVROCAUC:   r.CVMean,
			Selected:   r.Selected,
			TrainedAt:  report.FinishedAt,
			DataPoints: report.Rows,
		})
	}
	return entries
}
