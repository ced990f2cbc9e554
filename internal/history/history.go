// Package history records every sync batch and per-project outcome in an
// embedded SQLite database.
//
// The database runs in WAL mode through the ncruces/go-sqlite3 driver (pure
// Go, no cgo), so `ffpull history` can read while a `serve` process writes.
//
// Schema:
//   - runs: one row per batch with its tally
//   - results: one row per completed project, linked to its run
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ffpull/ffpull/internal/engine"
)

// DB is an open history database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path and ensures the schema.
//
// The caller must call Close when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tables and indexes. It is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		total INTEGER NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		up_to_date INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		canceled INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		project_name TEXT NOT NULL,
		project_path TEXT NOT NULL,
		branch TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT,
		old_head TEXT,
		new_head TEXT,
		recorded_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_recorded ON results(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_results_project ON results(project_name);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Run is one sync batch.
type Run struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	engine.Summary
	Canceled bool `json:"canceled"`
}

// Entry is one recorded project outcome.
type Entry struct {
	RunID      int64          `json:"run_id"`
	Position   int            `json:"position"`
	Project    string         `json:"project"`
	Path       string         `json:"path"`
	Branch     string         `json:"branch"`
	Outcome    engine.Outcome `json:"outcome"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Filter narrows Query.
type Filter struct {
	// Since excludes entries recorded before it when non-zero.
	Since time.Time

	// Project matches the project name exactly when non-empty.
	Project string

	// Limit caps the number of entries; 0 means no limit.
	Limit int
}

// BeginRun opens a run row for a batch of total projects.
func (db *DB) BeginRun(ctx context.Context, total int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (started_at, total) VALUES (?, ?)`,
		formatTime(time.Now()), total)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// RecordResult stores the outcome of one project in run.
func (db *DB) RecordResult(ctx context.Context, runID int64, p engine.Progress, branch string) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO results (
		run_id, position, project_name, project_path, branch,
		kind, reason, old_head, new_head, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		p.Index,
		p.Record.Name,
		p.Record.Path,
		branch,
		p.Outcome.Kind.String(),
		nullString(p.Outcome.Reason),
		nullString(p.Outcome.OldHead),
		nullString(p.Outcome.NewHead),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for %s: %w", p.Record.Name, err)
	}
	return nil
}

// FinishRun stores the tally of run.
func (db *DB) FinishRun(ctx context.Context, runID int64, s engine.Summary) error {
	_, err := db.conn.ExecContext(ctx, `
	UPDATE runs SET
		finished_at = ?,
		completed = ?,
		up_to_date = ?,
		updated = ?,
		failed = ?,
		canceled = ?
	WHERE id = ?`,
		formatTime(time.Now()),
		s.Completed,
		s.UpToDate,
		s.Updated,
		s.Failed,
		boolToInt(s.Canceled()),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// Query returns recorded outcomes, newest first.
func (db *DB) Query(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "recorded_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if f.Project != "" {
		where = append(where, "project_name = ?")
		args = append(args, f.Project)
	}

	query := `
	SELECT run_id, position, project_name, project_path, branch,
		kind, COALESCE(reason, ''), COALESCE(old_head, ''), COALESCE(new_head, ''), recorded_at
	FROM results`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			kind       string
			recordedAt string
		)
		if err := rows.Scan(&e.RunID, &e.Position, &e.Project, &e.Path, &e.Branch,
			&kind, &e.Outcome.Reason, &e.Outcome.OldHead, &e.Outcome.NewHead, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := e.Outcome.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs returns the most recent batches, newest first.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, started_at, finished_at, total, completed, up_to_date, updated, failed, canceled
	FROM runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			finishedAt sql.NullString
			canceled   int
		)
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.Total, &r.Completed,
			&r.UpToDate, &r.Updated, &r.Failed, &canceled); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			t, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		r.Canceled = canceled != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
