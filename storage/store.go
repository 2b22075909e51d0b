// Package storage persists labeled records and training runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/cropyield/dataset"
	"github.com/YuminosukeSato/cropyield/pipeline"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
	"github.com/YuminosukeSato/cropyield/pkg/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    temperature_mean REAL NOT NULL,
    annual_precipitation REAL NOT NULL,
    fertilizer_use REAL NOT NULL,
    soil_type TEXT NOT NULL,
    yield REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS training_runs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    model TEXT NOT NULL,
    n_estimators INTEGER NOT NULL,
    max_depth INTEGER NOT NULL,
    random_state INTEGER NOT NULL,
    train_size INTEGER NOT NULL,
    test_size INTEGER NOT NULL,
    mae REAL NOT NULL,
    r2 REAL NOT NULL,
    trained_at INTEGER NOT NULL
);
`

// Run is one stored training run.
type Run struct {
	ID          string
	Model       string
	NEstimators int
	MaxDepth    int
	RandomState uint64
	TrainSize   int
	TestSize    int
	MAE         float64
	R2          float64
	TrainedAt   time.Time
}

// RunFromResult describes a Train result as a Run trained at at.
func RunFromResult(res *pipeline.TrainResult, at time.Time) Run {
	f := res.Pipeline.Forest
	return Run{
		ID:          res.Pipeline.ID,
		Model:       pipeline.ModelName,
		NEstimators: f.NEstimators,
		MaxDepth:    f.MaxDepth,
		RandomState: f.RandomState,
		TrainSize:   res.TrainSize,
		TestSize:    res.TestSize,
		MAE:         res.Metrics.MAE,
		R2:          res.Metrics.R2,
		TrainedAt:   at,
	}
}

// Store is a SQLite-backed store. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	log log.Logger
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create tables")
	}
	return &Store{db: db, log: log.GetLoggerWithName("storage")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecords appends records in one transaction. Invalid records are rejected
// before anything is written.
func (s *Store) SaveRecords(ctx context.Context, records []dataset.LabeledRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
        (temperature_mean, annual_precipitation, fertilizer_use, soil_type, yield)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.TemperatureMean, r.AnnualPrecipitation, r.FertilizerUse, r.SoilType, r.Yield); err != nil {
			return errors.Wrapf(err, "insert record %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit records")
	}
	s.log.Info("Records saved", log.OperationKey, log.OperationIngest, log.SamplesKey, len(records))
	return nil
}

// LoadRecords returns every stored record, in insertion order, as a validated Dataset.
func (s *Store) LoadRecords(ctx context.Context) (dataset.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT temperature_mean, annual_precipitation,
        fertilizer_use, soil_type, yield FROM records ORDER BY id`)
	if err != nil {
		return dataset.Dataset{}, errors.Wrap(err, "query records")
	}
	defer rows.Close()

	var records []dataset.LabeledRecord
	for rows.Next() {
		var r dataset.LabeledRecord
		if err := rows.Scan(&r.TemperatureMean, &r.AnnualPrecipitation, &r.FertilizerUse, &r.SoilType, &r.Yield); err != nil {
			return dataset.Dataset{}, errors.Wrap(err, "scan record")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return dataset.Dataset{}, errors.Wrap(err, "iterate records")
	}
	return dataset.New(records)
}

// SaveRun stores run. An empty ID is replaced by a new UUID, and the stored
// ID is returned.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO training_runs
        (id, model, n_estimators, max_depth, random_state, train_size, test_size, mae, r2, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.NEstimators, run.MaxDepth, int64(run.RandomState),
		run.TrainSize, run.TestSize, run.MAE, run.R2, run.TrainedAt.UnixNano())
	if err != nil {
		return "", errors.Wrapf(err, "insert run %s", run.ID)
	}
	s.log.Info("Training run saved", log.EstimatorIDKey, run.ID, log.MAEKey, run.MAE, log.R2ScoreKey, run.R2)
	return run.ID, nil
}

// ListRuns returns the stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, model, n_estimators, max_depth, random_state,
        train_size, test_size, mae, r2, trained_at
        FROM training_runs ORDER BY trained_at DESC, seq DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			seed      int64
			trainedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Model, &r.NEstimators, &r.MaxDepth, &seed,
			&r.TrainSize, &r.TestSize, &r.MAE, &r.R2, &trainedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.RandomState = uint64(seed)
		r.TrainedAt = time.Unix(0, trainedAt)
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}
