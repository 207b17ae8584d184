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

	"freight/internal/config"
	"freight/internal/protocol"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current history schema version. Bump this when the
// schema changes; the database under the log directory can simply be
// deleted to start over.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by an incompatible
// version.
var ErrSchemaMismatch = errors.New("run history schema version mismatch")

// Run is one recorded migration run.
type Run struct {
	ID         string
	SourceDir  string
	DestDir    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Outcome    string
}

// Event is one recorded control-plane or supervisor event within a run.
type Event struct {
	ID     int64
	RunID  string
	At     time.Time
	Kind   string
	Tool   string
	Dir    string
	Status string
	Bytes  *uint64
	Detail string
}

// Store persists run history in SQLite under the configured log directory.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "runlog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
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

// Path returns the database file location.
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
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
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
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordRun inserts the run row at the moment a migration run begins.
func (s *Store) RecordRun(ctx context.Context, runID, sourceDir, destDir string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_dir, dest_dir, started_at) VALUES (?, ?, ?, ?)`,
		runID, sourceDir, destDir, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordMessage appends one decoded control-plane message to the run's
// event trail.
func (s *Store) RecordMessage(ctx context.Context, runID string, msg protocol.Message) error {
	var (
		tool, dir, status, detail string
		bytes                     *uint64
	)
	switch m := msg.(type) {
	case protocol.Hello:
		detail = fmt.Sprintf("host=%s pid=%d", m.Host, m.PID)
	case protocol.Start:
		tool, dir = m.Tool, m.Dir
	case protocol.Progress:
		tool, dir, detail, bytes = m.Tool, m.Dir, m.Text, m.Bytes
	case protocol.Stop:
		tool, dir, status, detail, bytes = m.Tool, m.Dir, m.Status, m.Text, m.Bytes
	}
	return s.recordEvent(ctx, runID, msg.Kind(), tool, dir, status, detail, bytes)
}

// RecordProcessExit appends a supervisor-observed worker exit.
func (s *Store) RecordProcessExit(ctx context.Context, runID, tool, dir string, pid int, exitErr error) error {
	detail := fmt.Sprintf("pid=%d", pid)
	status := "exit_ok"
	if exitErr != nil {
		status = "exit_error"
		detail = fmt.Sprintf("pid=%d: %v", pid, exitErr)
	}
	return s.recordEvent(ctx, runID, "EXIT", tool, dir, status, detail, nil)
}

func (s *Store) recordEvent(ctx context.Context, runID, kind, tool, dir, status, detail string, bytes *uint64) error {
	var byteCount any
	if bytes != nil {
		byteCount = int64(*bytes)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, at, kind, tool, dir, status, bytes, detail)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano),
		kind, tool, dir, nullableString(status), byteCount, nullableString(detail),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_dir, dest_dir, started_at, finished_at, outcome
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
			outcome  sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.SourceDir, &run.DestDir, &started, &finished, &outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse run start time: %w", err)
		}
		if finished.Valid {
			at, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse run finish time: %w", err)
			}
			run.FinishedAt = &at
		}
		run.Outcome = outcome.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListEvents returns a run's events in the order they were recorded.
func (s *Store) ListEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, at, kind, tool, dir, status, bytes, detail
         FROM events WHERE run_id = ? ORDER BY id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev     Event
			at     string
			status sql.NullString
			bytes  sql.NullInt64
			detail sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &at, &ev.Kind, &ev.Tool, &ev.Dir, &status, &bytes, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		ev.Status = status.String
		ev.Detail = detail.String
		if bytes.Valid {
			value := uint64(bytes.Int64)
			ev.Bytes = &value
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
