package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS circuit_state (
	circuit_id        TEXT PRIMARY KEY,
	circuit_type      TEXT NOT NULL,
	state             TEXT NOT NULL,
	default_state     TEXT NOT NULL,
	failure_count     INTEGER NOT NULL DEFAULT 0,
	success_count     INTEGER NOT NULL DEFAULT 0,
	failure_threshold INTEGER NOT NULL DEFAULT 0,
	last_failure_at   TIMESTAMP,
	last_success_at   TIMESTAMP,
	state_changed_at  TIMESTAMP
);
`

// SQLiteRepository stores circuit rows in a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// OpenSQLite opens (creating if needed) the circuit database at path. The
// parent directory is created when missing so first runs work out of the box.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) GetState(ctx context.Context, circuitID string) (*CircuitState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT circuit_id, circuit_type, state, default_state,
		       failure_count, success_count, failure_threshold,
		       last_failure_at, last_success_at, state_changed_at
		FROM circuit_state WHERE circuit_id = ?`, circuitID)

	var cs CircuitState
	var lastFailure, lastSuccess, stateChanged sql.NullTime
	err := row.Scan(&cs.CircuitID, &cs.CircuitType, &cs.State, &cs.DefaultState,
		&cs.FailureCount, &cs.SuccessCount, &cs.FailureThreshold,
		&lastFailure, &lastSuccess, &stateChanged)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load circuit %s: %w", circuitID, err)
	}
	cs.LastFailureAt = nullableTime(lastFailure)
	cs.LastSuccessAt = nullableTime(lastSuccess)
	cs.StateChangedAt = nullableTime(stateChanged)
	return &cs, nil
}

func (r *SQLiteRepository) SetState(ctx context.Context, circuitID string, update StateUpdate) error {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)

	if update.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, string(*update.State))
	}
	if update.FailureCount != nil {
		sets = append(sets, "failure_count = ?")
		args = append(args, *update.FailureCount)
	}
	if update.SuccessCount != nil {
		sets = append(sets, "success_count = ?")
		args = append(args, *update.SuccessCount)
	}
	if update.LastFailureAt != nil {
		sets = append(sets, "last_failure_at = ?")
		args = append(args, *update.LastFailureAt)
	}
	if update.LastSuccessAt != nil {
		sets = append(sets, "last_success_at = ?")
		args = append(args, *update.LastSuccessAt)
	}
	if update.StateChangedAt != nil {
		sets = append(sets, "state_changed_at = ?")
		args = append(args, *update.StateChangedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, circuitID)
	query := "UPDATE circuit_state SET " + strings.Join(sets, ", ") + " WHERE circuit_id = ?"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update circuit %s: %w", circuitID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetAllStates(ctx context.Context) ([]CircuitState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT circuit_id, circuit_type, state, default_state,
		       failure_count, success_count, failure_threshold,
		       last_failure_at, last_success_at, state_changed_at
		FROM circuit_state ORDER BY circuit_id`)
	if err != nil {
		return nil, fmt.Errorf("list circuits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []CircuitState
	for rows.Next() {
		var cs CircuitState
		var lastFailure, lastSuccess, stateChanged sql.NullTime
		if err := rows.Scan(&cs.CircuitID, &cs.CircuitType, &cs.State, &cs.DefaultState,
			&cs.FailureCount, &cs.SuccessCount, &cs.FailureThreshold,
			&lastFailure, &lastSuccess, &stateChanged); err != nil {
			return nil, fmt.Errorf("scan circuit row: %w", err)
		}
		cs.LastFailureAt = nullableTime(lastFailure)
		cs.LastSuccessAt = nullableTime(lastSuccess)
		cs.StateChangedAt = nullableTime(stateChanged)
		states = append(states, cs)
	}
	return states, rows.Err()
}

func (r *SQLiteRepository) InitializeCircuit(ctx context.Context, def CircuitState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO circuit_state
			(circuit_id, circuit_type, state, default_state, failure_count, success_count, failure_threshold, state_changed_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(circuit_id) DO NOTHING`,
		def.CircuitID, string(def.CircuitType), string(def.DefaultState), string(def.DefaultState),
		def.FailureThreshold, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("initialize circuit %s: %w", def.CircuitID, err)
	}
	return nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, circuitID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE circuit_state
		SET failure_count = failure_count + 1, last_failure_at = ?
		WHERE circuit_id = ?`, at, circuitID)
	if err != nil {
		return 0, fmt.Errorf("record failure for %s: %w", circuitID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrNotFound
	}
	return r.counter(ctx, circuitID, "failure_count")
}

func (r *SQLiteRepository) RecordSuccess(ctx context.Context, circuitID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE circuit_state
		SET success_count = success_count + 1, last_success_at = ?
		WHERE circuit_id = ?`, at, circuitID)
	if err != nil {
		return 0, fmt.Errorf("record success for %s: %w", circuitID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrNotFound
	}
	return r.counter(ctx, circuitID, "success_count")
}

func (r *SQLiteRepository) ResetCounters(ctx context.Context, circuitID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE circuit_state SET failure_count = 0, success_count = 0
		WHERE circuit_id = ?`, circuitID)
	if err != nil {
		return fmt.Errorf("reset counters for %s: %w", circuitID, err)
	}
	return nil
}

func (r *SQLiteRepository) counter(ctx context.Context, circuitID, column string) (int, error) {
	// column is one of two compile-time constants, never user input.
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT "+column+" FROM circuit_state WHERE circuit_id = ?", circuitID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read %s for %s: %w", column, circuitID, err)
	}
	return count, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
