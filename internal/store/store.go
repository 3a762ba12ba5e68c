// Package store persists a local history of action runs in SQLite. The
// catalog is observability only: the backup pipeline never reads it to make
// decisions, and a write failure never aborts a run.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateRun inserts a new RunRecord and sets its ID
func (s *Store) CreateRun(run *RunRecord) error {
	const query = `
		INSERT INTO runs (
			action, instance, snapshot, start_time, end_time,
			attempts, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Action, run.Instance, run.Snapshot, run.StartTime, run.EndTime,
		run.Attempts, run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateRun updates an existing RunRecord by ID
func (s *Store) UpdateRun(run *RunRecord) error {
	const query = `
		UPDATE runs SET
			action = ?, instance = ?, snapshot = ?, start_time = ?,
			end_time = ?, attempts = ?, status = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Action, run.Instance, run.Snapshot, run.StartTime, run.EndTime,
		run.Attempts, run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %d", run.ID)
	}

	return nil
}

// RecentRuns returns the most recent runs for an instance, newest first
func (s *Store) RecentRuns(instance string, limit int) ([]RunRecord, error) {
	const query = `
		SELECT id, action, instance, snapshot, start_time, end_time,
		       attempts, status, error_message
		FROM runs
		WHERE instance = ?
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, instance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(
			&run.ID, &run.Action, &run.Instance, &run.Snapshot,
			&run.StartTime, &run.EndTime, &run.Attempts,
			&run.Status, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
