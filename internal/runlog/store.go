package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"distiller/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current ledger schema. Bump on schema changes; the
// ledger is observability-only, so deleting the database is always safe.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// schema version.
var ErrSchemaMismatch = errors.New("run ledger schema version mismatch")

// StageRun is one recorded stage invocation.
type StageRun struct {
	ID         int64
	RunID      string
	PackageID  string
	Stage      string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Skipped    int
	Failed     int
	Error      string
}

// Store is the SQLite-backed run ledger. Manifests remain the source of
// package truth; the ledger only answers "what ran, when, how did it go".
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run ledger database under the log
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Record appends one stage invocation to the ledger.
func (s *Store) Record(ctx context.Context, run StageRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_runs (run_id, package_id, stage, started_at, finished_at, succeeded, skipped, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.PackageID, run.Stage,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Succeeded, run.Skipped, run.Failed, run.Error,
	)
	if err != nil {
		return fmt.Errorf("record stage run: %w", err)
	}
	return nil
}

// Recent returns the latest stage invocations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]StageRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, package_id, stage, started_at, finished_at, succeeded, skipped, failed, error
		 FROM stage_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ForPackage returns every recorded invocation for one package, oldest first.
func (s *Store) ForPackage(ctx context.Context, packageID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, package_id, stage, started_at, finished_at, succeeded, skipped, failed, error
		 FROM stage_runs WHERE package_id = ? ORDER BY id ASC`, packageID)
	if err != nil {
		return nil, fmt.Errorf("query stage runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]StageRun, error) {
	var runs []StageRun
	for rows.Next() {
		var run StageRun
		var started, finished string
		if err := rows.Scan(&run.ID, &run.RunID, &run.PackageID, &run.Stage,
			&started, &finished, &run.Succeeded, &run.Skipped, &run.Failed, &run.Error); err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
