package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openSQLite opens (and creates if needed) the journal database at path and
// ensures required tables exist.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	if err := checkLocalFilesystem(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Concurrent vendorbin processes share the file; one connection per process is plenty.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispatch_run (
  id          TEXT PRIMARY KEY,
  selector    TEXT NOT NULL,
  invocation  TEXT NOT NULL,
  project_dir TEXT NOT NULL,
  exit_code   INTEGER NOT NULL,
  total       INTEGER NOT NULL,
  error       TEXT,
  started_at  TEXT NOT NULL,
  finished_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS namespace_run (
  run_id         TEXT NOT NULL REFERENCES dispatch_run(id) ON DELETE CASCADE,
  position       INTEGER NOT NULL,
  namespace      TEXT NOT NULL,
  path           TEXT NOT NULL,
  exit_code      INTEGER NOT NULL,
  skipped_reason TEXT,
  PRIMARY KEY (run_id, position)
);`,
		`CREATE INDEX IF NOT EXISTS dispatch_run_started_at_idx ON dispatch_run(started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap history: %w", err)
		}
	}
	return nil
}
