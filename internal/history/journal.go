// Package history keeps a SQLite journal of top-level dispatches.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of runs Recent returns for a non-positive limit.
const DefaultLimit = 20

// Run is one recorded dispatch.
type Run struct {
	ID         string
	Selector   string
	Invocation string
	ProjectDir string
	ExitCode   int
	Total      int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Namespaces []NamespaceRun
}

// NamespaceRun is the outcome of a dispatch in one namespace.
type NamespaceRun struct {
	Name     string
	Path     string
	ExitCode int

	// SkippedReason is set when the namespace could not be prepared.
	SkippedReason string
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Journal persists runs.
type Journal struct {
	db *sql.DB
}

// Open opens the journal at path, creating it if needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores run and its namespace results in one transaction. A missing
// ID is generated and the stored run is returned.
func (j *Journal) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO dispatch_run(id, selector, invocation, project_dir, exit_code, total, error, started_at, finished_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, run.ID, run.Selector, run.Invocation, run.ProjectDir, run.ExitCode, run.Total,
		nullString(run.Error), formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return Run{}, fmt.Errorf("insert dispatch run: %w", err)
	}

	for i, ns := range run.Namespaces {
		_, err = tx.ExecContext(ctx, `
INSERT INTO namespace_run(run_id, position, namespace, path, exit_code, skipped_reason)
VALUES(?, ?, ?, ?, ?, ?);
`, run.ID, i, ns.Name, ns.Path, ns.ExitCode, nullString(ns.SkippedReason))
		if err != nil {
			return Run{}, fmt.Errorf("insert namespace run %q: %w", ns.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit tx: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first, with their namespace results.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, selector, invocation, project_dir, exit_code, total, error, started_at, finished_at
FROM dispatch_run
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatch runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			runErr            sql.NullString
			started, finished string
		)
		if err := rows.Scan(&run.ID, &run.Selector, &run.Invocation, &run.ProjectDir,
			&run.ExitCode, &run.Total, &runErr, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan dispatch run: %w", err)
		}
		run.Error = runErr.String
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		if runs[i].Namespaces, err = j.namespaces(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (j *Journal) namespaces(ctx context.Context, runID string) ([]NamespaceRun, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT namespace, path, exit_code, skipped_reason
FROM namespace_run
WHERE run_id = ?
ORDER BY position;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query namespace runs: %w", err)
	}
	defer rows.Close()

	var out []NamespaceRun
	for rows.Next() {
		var (
			ns     NamespaceRun
			reason sql.NullString
		)
		if err := rows.Scan(&ns.Name, &ns.Path, &ns.ExitCode, &reason); err != nil {
			return nil, fmt.Errorf("scan namespace run: %w", err)
		}
		ns.SkippedReason = reason.String
		out = append(out, ns)
	}
	return out, rows.Err()
}

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
