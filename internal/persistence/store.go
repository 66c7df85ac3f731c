// Package persistence writes completed run records to SQLite, grounded on
// the teacher's internal/engine/simple/store_sqlite.go state store, wrapped
// in a failsafe-go circuit breaker so disk failures don't cascade into the
// engine's hot path.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	_ "github.com/mattn/go-sqlite3"

	"github.com/KlmnCapital/simulation-engine/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_records (
	run_id           TEXT PRIMARY KEY,
	strategy_name    TEXT NOT NULL,
	started_at       INTEGER NOT NULL,
	finished_at      INTEGER NOT NULL,
	quotes_processed INTEGER NOT NULL,
	summary_json     TEXT NOT NULL,
	report           TEXT NOT NULL
);`

// SQLiteStore persists engine.RunRecord values, implementing engine.ResultSink.
type SQLiteStore struct {
	db       *sql.DB
	pipeline failsafe.Executor[any]
}

// NewSQLiteStore opens (creating if needed) a WAL-mode SQLite database at
// dbPath and ensures the run_records table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	breaker := circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return err != nil }).
		WithFailureThresholdRatio(3, 5).
		WithDelay(30 * time.Second).
		Build()

	return &SQLiteStore{
		db:       db,
		pipeline: failsafe.With[any](breaker),
	}, nil
}

// SaveRun implements engine.ResultSink. Writes are routed through a circuit
// breaker: once enough recent writes have failed, subsequent calls fail fast
// with circuitbreaker.ErrOpen instead of blocking on a wedged disk.
func (s *SQLiteStore) SaveRun(ctx context.Context, record engine.RunRecord) error {
	_, err := s.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return nil, s.writeRun(ctx, record)
	})
	return err
}

func (s *SQLiteStore) writeRun(ctx context.Context, record engine.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summaryJSON, err := json.Marshal(record.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	const query = `INSERT OR REPLACE INTO run_records
		(run_id, strategy_name, started_at, finished_at, quotes_processed, summary_json, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		record.RunID, record.StrategyName,
		record.StartedAt.UnixNano(), record.FinishedAt.UnixNano(),
		record.QuotesProcessed, string(summaryJSON), record.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	return tx.Commit()
}

// LoadRun reads back a previously persisted run by id, or (zero, false, nil)
// if no such run exists.
func (s *SQLiteStore) LoadRun(ctx context.Context, runID string) (engine.RunRecord, bool, error) {
	const query = `SELECT run_id, strategy_name, started_at, finished_at, quotes_processed, summary_json, report
		FROM run_records WHERE run_id = ?`

	var rec engine.RunRecord
	var startedNs, finishedNs int64
	var summaryJSON string

	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&rec.RunID, &rec.StrategyName, &startedNs, &finishedNs,
		&rec.QuotesProcessed, &summaryJSON, &rec.Report,
	)
	if err == sql.ErrNoRows {
		return engine.RunRecord{}, false, nil
	}
	if err != nil {
		return engine.RunRecord{}, false, fmt.Errorf("failed to read run record: %w", err)
	}

	rec.StartedAt = time.Unix(0, startedNs)
	rec.FinishedAt = time.Unix(0, finishedNs)
	if err := json.Unmarshal([]byte(summaryJSON), &rec.Summary); err != nil {
		return engine.RunRecord{}, false, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return rec, true, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
