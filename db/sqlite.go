package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"horsecolic/ml"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists served predictions and training runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and ensures the tables exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY,
        prediction_id TEXT NOT NULL UNIQUE,
        source VARCHAR(20),
        predicted_label INTEGER,
        prob_died REAL,
        prob_survived REAL,
        confidence REAL,
        features TEXT,
        timestamp DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY,
        model_name VARCHAR(50),
        schema_fingerprint VARCHAR(32),
        artifact_path TEXT,
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        trained_at DATETIME,
        data_points INTEGER,
        train_rows INTEGER,
        test_rows INTEGER
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PredictionLog is one served prediction.
type PredictionLog struct {
	ID            string           `json:"id"`
	Source        string           `json:"source"`
	Label         int              `json:"label"`
	Probabilities [2]float64       `json:"probabilities"`
	Confidence    float64          `json:"confidence"`
	Features      ml.FeatureRecord `json:"features"`
	Timestamp     time.Time        `json:"timestamp"`
}

// NewPredictionLog stamps a prediction with a fresh ID and the current time.
func NewPredictionLog(source string, rec ml.FeatureRecord, pred ml.Prediction) PredictionLog {
	return PredictionLog{
		ID:            uuid.NewString(),
		Source:        source,
		Label:         pred.Label,
		Probabilities: pred.Probabilities,
		Confidence:    pred.Confidence,
		Features:      rec,
		Timestamp:     time.Now().UTC(),
	}
}

func (s *Store) SavePrediction(ctx context.Context, entry PredictionLog) error {
	if s == nil || s.db == nil {
		return errors.New("database not initialized")
	}
	features, err := json.Marshal(entry.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            prediction_id, source, predicted_label, prob_died, prob_survived, confidence, features, timestamp
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Source, entry.Label,
		entry.Probabilities[0], entry.Probabilities[1], entry.Confidence,
		string(features), entry.Timestamp,
	)
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionLog, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT prediction_id, source, predicted_label, prob_died, prob_survived, confidence, features, timestamp
        FROM predictions
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]PredictionLog, 0)
	for rows.Next() {
		var entry PredictionLog
		var features string
		if err := rows.Scan(&entry.ID, &entry.Source, &entry.Label,
			&entry.Probabilities[0], &entry.Probabilities[1], &entry.Confidence,
			&features, &entry.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &entry.Features); err != nil {
			return nil, fmt.Errorf("decode features of %s: %w", entry.ID, err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

type TrainingLog struct {
	ModelName         string    `json:"model_name"`
	SchemaFingerprint string    `json:"schema_fingerprint"`
	ArtifactPath      string    `json:"artifact_path"`
	Accuracy          float64   `json:"accuracy"`
	Precision         float64   `json:"precision"`
	Recall            float64   `json:"recall"`
	F1                float64   `json:"f1"`
	TrainedAt         time.Time `json:"trained_at"`
	DataPoints        int       `json:"data_points"`
	TrainRows         int       `json:"train_rows"`
	TestRows          int       `json:"test_rows"`
}

// TrainingLogFor summarizes a fitted pipeline.
func TrainingLogFor(p *ml.Pipeline, artifactPath string) TrainingLog {
	eval := p.Training.Evaluation
	return TrainingLog{
		ModelName:         "decision_tree",
		SchemaFingerprint: p.Schema.Fingerprint(),
		ArtifactPath:      artifactPath,
		Accuracy:          eval.Accuracy,
		Precision:         eval.Precision,
		Recall:            eval.Recall,
		F1:                eval.F1,
		TrainedAt:         p.Training.TrainedAt,
		DataPoints:        p.Training.Rows,
		TrainRows:         p.Training.TrainRows,
		TestRows:          p.Training.TestRows,
	}
}

func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) error {
	if s == nil || s.db == nil {
		return errors.New("database not initialized")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            model_name, schema_fingerprint, artifact_path, accuracy, precision, recall, f1,
            trained_at, data_points, train_rows, test_rows
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ModelName, log.SchemaFingerprint, log.ArtifactPath,
		log.Accuracy, log.Precision, log.Recall, log.F1,
		log.TrainedAt, log.DataPoints, log.TrainRows, log.TestRows,
	)
	return err
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, schema_fingerprint, artifact_path, accuracy, precision, recall, f1,
               trained_at, data_points, train_rows, test_rows
        FROM training_log
        ORDER BY trained_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.SchemaFingerprint, &log.ArtifactPath,
			&log.Accuracy, &log.Precision, &log.Recall, &log.F1,
			&log.TrainedAt, &log.DataPoints, &log.TrainRows, &log.TestRows); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
