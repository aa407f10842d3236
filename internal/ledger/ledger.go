// Package ledger keeps the outcome of the latest ingestion attempt for every
// record in a SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/efebarandurmaz/hybridrag/internal/ledger/migrations"
)

// ErrNotFound is returned when a record has never been ingested.
var ErrNotFound = errors.New("ledger: record not found")

// Entry is the latest ingestion outcome for one record.
type Entry struct {
	RecordID    string    `json:"record_id"`
	Status      string    `json:"status"`
	VectorError string    `json:"vector_error,omitempty"`
	GraphError  string    `json:"graph_error,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Recorder receives ingestion outcomes.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is a SQLite-backed Recorder.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, s.now().UnixNano()); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Record stores e as the latest outcome for its record and bumps the
// attempt counter.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RecordID == "" {
		return fmt.Errorf("ledger: empty record id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (record_id, status, vector_error, graph_error, error, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			status = excluded.status,
			vector_error = excluded.vector_error,
			graph_error = excluded.graph_error,
			error = excluded.error,
			attempts = records.attempts + 1,
			updated_at = excluded.updated_at
	`, e.RecordID, e.Status, e.VectorError, e.GraphError, e.Error, s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.RecordID, err)
	}
	return nil
}

// Get returns the entry for id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_id, status, vector_error, graph_error, error, attempts, updated_at
		FROM records WHERE record_id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns every entry ordered by record id. An empty status matches
// all entries.
func (s *Store) List(ctx context.Context, status string) ([]Entry, error) {
	query := `SELECT record_id, status, vector_error, graph_error, error, attempts, updated_at FROM records`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY record_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary counts entries per status.
func (s *Store) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarizing ledger: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var updated int64
	if err := row.Scan(&e.RecordID, &e.Status, &e.VectorError, &e.GraphError, &e.Error, &e.Attempts, &updated); err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return e, nil
}

var _ Recorder = (*Store)(nil)
