// Package manifest records finished runs in a SQLite database so their
// digests can be queried after the fact. It is a write-only sink for the
// hashing engine: nothing here is consulted to skip reading a file.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bamsammich/treehash/internal/engine"
)

// Store is an open manifest database.
type Store struct {
	db   *sql.DB
	path string
}

// Run describes one recorded fingerprint run.
type Run struct {
	ID        string
	Root      string
	Algorithm engine.Algorithm
	Started   time.Time
	Files     int
	Failed    int
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id        TEXT PRIMARY KEY,
	root      TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	started   TEXT NOT NULL,
	files     INTEGER NOT NULL,
	failed    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS digests (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path   TEXT NOT NULL,
	digest TEXT,
	size   INTEGER NOT NULL,
	kind   TEXT,
	error  TEXT,
	PRIMARY KEY (run_id, path)
);
`

// Open opens (or creates) the manifest at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record stores run and every result in a single transaction. Recording the
// same run ID twice is an error.
func (s *Store) Record(ctx context.Context, run Run, results map[string]engine.HashResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, root, algorithm, started, files, failed) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Root, string(run.Algorithm), run.Started.UTC().Format(time.RFC3339Nano), len(results), failed,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO digests (run_id, path, digest, size, kind, error) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range engine.SortResults(results) {
		var digest, kind, msg sql.NullString
		if r.OK() {
			digest = sql.NullString{String: r.Digest, Valid: true}
		} else {
			kind = sql.NullString{String: r.Err.Kind.String(), Valid: true}
			msg = sql.NullString{String: r.Err.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, r.Path, digest, r.Size, kind, msg); err != nil {
			return fmt.Errorf("insert %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ErrRunNotFound is returned when a run ID is not in the manifest.
var ErrRunNotFound = errors.New("run not found")

// Delete removes runID and, through the foreign key, all of its digests.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, root, algorithm, started, files, failed FROM runs ORDER BY started DESC")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Digests returns the results recorded for runID.
func (s *Store) Digests(ctx context.Context, runID string) (map[string]engine.HashResult, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&n); err != nil {
		return nil, fmt.Errorf("lookup run %s: %w", runID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT path, digest, size, kind, error FROM digests WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	out := make(map[string]engine.HashResult)
	for rows.Next() {
		var (
			r                 engine.HashResult
			digest, kind, msg sql.NullString
		)
		if err := rows.Scan(&r.Path, &digest, &r.Size, &kind, &msg); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		if kind.Valid {
			k, _ := engine.ParseErrorKind(kind.String)
			r.Err = &engine.FileReadError{Path: r.Path, Kind: k, Err: errors.New(msg.String)}
		} else {
			r.Digest = digest.String
		}
		out[r.Path] = r
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run     Run
		algo    string
		started string
	)
	if err := row.Scan(&run.ID, &run.Root, &algo, &started, &run.Files, &run.Failed); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Algorithm = engine.Algorithm(algo)
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse start time %q: %w", started, err)
	}
	run.Started = t
	return run, nil
}
