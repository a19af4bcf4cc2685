// Package journal records top-level operations in a local SQLite database,
// backing the `history` command.
package journal

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/lukskeep/lukskeep/pkg/errors"
)

// Journal provides database operations for run records.
type Journal struct {
	db *sql.DB
}

// Open opens (and if needed creates) the journal database at path.
func Open(path string) (*Journal, error) {
	slog.Info("journal_init", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		slog.Error("journal_open_failed", "path", path, "error", err)
		return nil, errors.Wrap(err, "failed to open journal database")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("journal_schema_failed", "path", path, "error", err)
		return nil, errors.Wrap(err, "failed to create journal schema")
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records the start of an operation and returns the run id.
func (j *Journal) Begin(operation string) (int64, error) {
	result, err := j.db.Exec(
		`INSERT INTO runs (operation, status) VALUES (?, ?)`,
		operation, StatusStarted)
	if err != nil {
		slog.Error("journal_insert_failed", "operation", operation, "error", err)
		return 0, errors.Wrap(err, "failed to insert run")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get last insert id")
	}

	slog.Info("journal_run_started", "run_id", id, "operation", operation)
	return id, nil
}

// Succeed marks a run as succeeded, optionally recording a snapshot path.
func (j *Journal) Succeed(id int64, snapshotPath string) error {
	return j.finish(id, StatusSucceeded, "", snapshotPath)
}

// Fail marks a run as failed with a diagnostic detail.
func (j *Journal) Fail(id int64, detail string) error {
	return j.finish(id, StatusFailed, detail, "")
}

func (j *Journal) finish(id int64, status, detail, snapshotPath string) error {
	_, err := j.db.Exec(
		`UPDATE runs SET status = ?, detail = ?, snapshot_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, detail, snapshotPath, id)
	if err != nil {
		slog.Error("journal_update_failed", "run_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update run")
	}

	slog.Info("journal_run_finished", "run_id", id, "status", status)
	return nil
}

// List returns all recorded runs, newest first.
func (j *Journal) List() ([]*Run, error) {
	rows, err := j.db.Query(`
		SELECT id, operation, status, detail, snapshot_path, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		slog.Error("journal_list_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var detail, snapshotPath sql.NullString

		if err := rows.Scan(&run.ID, &run.Operation, &run.Status, &detail, &snapshotPath,
			&run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		run.Detail = detail.String
		run.SnapshotPath = snapshotPath.String
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return runs, nil
}
