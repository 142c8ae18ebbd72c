package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"churnai/churn"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prediction_id TEXT NOT NULL,
        tenure INTEGER NOT NULL,
        monthly_charges REAL NOT NULL,
        total_charges REAL NOT NULL,
        contract TEXT NOT NULL,
        internet_service TEXT NOT NULL,
        payment_method TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        churn_probability REAL NOT NULL,
        model_type TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        UNIQUE(prediction_id)
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        accuracy REAL,
        precision REAL,
        recall REAL,
        roc_auc REAL,
        cv_roc_auc REAL,
        selected INTEGER DEFAULT 0,
        trained_at DATETIME NOT NULL,
        data_points INTEGER
    );
    `

// ErrClosed is returned by a Store after Close.
var ErrClosed = errors.New("database not initialized")

// Store persists prediction history and the training log in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("init schema %s: %w", path, err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// PredictionRow is one served prediction.
type PredictionRow struct {
	ID         string           `json:"prediction_id"`
	Record     churn.Record     `json:"record"`
	Prediction churn.Prediction `json:"prediction"`
	ModelType  string           `json:"model_type"`
	CreatedAt  time.Time        `json:"created_at"`
}

// SavePrediction appends row to the history.
func (s *Store) SavePrediction(row PredictionRow) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if row.ID == "" {
		return errors.New("prediction id required")
	}
	r := row.Record
	_, err := s.db.Exec(`
        INSERT INTO predictions (
            prediction_id, tenure, monthly_charges, total_charges,
            contract, internet_service, payment_method,
            predicted_label, churn_probability, model_type, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		row.ID,
		r.Tenure,
		r.MonthlyCharges,
		r.TotalCharges,
		r.Contract,
		r.InternetService,
		r.PaymentMethod,
		row.Prediction.Label,
		row.Prediction.Probability,
		row.ModelType,
		row.CreatedAt.UTC(),
	)
	return err
}

// RecentPredictions returns up to limit rows, newest first.
func (s *Store) RecentPredictions(limit int) ([]PredictionRow, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`
        SELECT prediction_id, tenure, monthly_charges, total_charges,
               contract, internet_service, payment_method,
               predicted_label, churn_probability, model_type, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]PredictionRow, 0, limit)
	for rows.Next() {
		var row PredictionRow
		r := &row.Record
		p := &row.Prediction
		if err := rows.Scan(&row.ID, &r.Tenure, &r.MonthlyCharges, &r.TotalCharges,
			&r.Contract, &r.InternetService, &r.PaymentMethod,
			&p.Label, &p.Probability, &row.ModelType, &row.CreatedAt); err != nil {
			return nil, err
		}
		p.Churn = p.Label == 1
		p.Risk = churn.ClassifyRisk(p.Probability)
		history = append(history, row)
	}
	return history, rows.Err()
}

// TrainingLog is one candidate model evaluated by a training run.
type TrainingLog struct {
	RunID      string    `json:"run_id"`
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	ROCAUC     float64   `json:"roc_auc"`
	CVROCAUC   float64   `json:"cv_roc_auc"`
	Selected   bool      `json:"selected"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

// SaveTrainingLog appends the candidates of one run in a single transaction.
func (s *Store) SaveTrainingLog(entries []TrainingLog) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
        INSERT INTO training_log (
            run_id, model_name, accuracy, precision, recall,
            roc_auc, cv_roc_auc, selected, trained_at, data_points
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.RunID, e.ModelName, e.Accuracy, e.Precision, e.Recall,
			e.ROCAUC, e.CVROCAUC, e.Selected, e.TrainedAt.UTC(), e.DataPoints); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadTrainingLog returns up to limit entries, newest first.
func (s *Store) LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`
        SELECT run_id, model_name, accuracy, precision, recall,
               roc_auc, cv_roc_auc, selected, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id ASC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.RunID, &log.ModelName, &log.Accuracy, &log.Precision, &log.Recall,
			&log.ROCAUC, &log.CVROCAUC, &log.Selected, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
