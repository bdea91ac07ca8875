// Package store keeps a history of engine runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"arwen/internal/ipc"
	"arwen/internal/logging"
	"arwen/internal/spec"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeSpecs  Outcome = "specs"
	OutcomeCex    Outcome = "cex"
	OutcomeFailed Outcome = "failed"
)

// Run is one Setup sent to the engine and what came back.
type Run struct {
	ID        string
	Client    string
	StartedAt time.Time
	Duration  time.Duration
	Setup     ipc.Setup
	Result    spec.Result // nil when the run failed
	Messages  []string
	Err       string
}

// Outcome derives the run outcome from Result and Err.
func (r *Run) Outcome() Outcome {
	switch r.Result.(type) {
	case spec.Discovered:
		return OutcomeSpecs
	case spec.Cex:
		return OutcomeCex
	}
	return OutcomeFailed
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases coherent
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.StoreDebug("opened run store at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		client TEXT NOT NULL,
		started_at INTEGER NOT NULL, -- unix nanoseconds
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		setup_json TEXT NOT NULL,
		result_json TEXT,
		messages_json TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_client ON runs(client);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists r. A missing ID or StartedAt is filled in and written
// back to r.
func (s *Store) Record(ctx context.Context, r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Client == "" {
		r.Client = r.Setup.ClientName
	}

	setupJSON, err := json.Marshal(r.Setup)
	if err != nil {
		return fmt.Errorf("failed to encode setup: %w", err)
	}
	var resultJSON sql.NullString
	if r.Result != nil {
		data, err := json.Marshal(r.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}
	messagesJSON, err := json.Marshal(r.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, client, started_at, duration_ms, outcome,
			setup_json, result_json, messages_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Client, r.StartedAt.UnixNano(), r.Duration.Milliseconds(), string(r.Outcome()),
		string(setupJSON), resultJSON, string(messagesJSON), r.Err)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	logging.Store("recorded run %s for %s (%s)", r.ID, r.Client, r.Outcome())
	return nil
}

const selectRun = `
	SELECT id, client, started_at, duration_ms, setup_json, result_json, messages_json, error
	FROM runs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r            Run
		startedNS    int64
		durationMS   int64
		setupJSON    string
		resultJSON   sql.NullString
		messagesJSON sql.NullString
		errText      sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Client, &startedNS, &durationMS, &setupJSON, &resultJSON, &messagesJSON, &errText); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, startedNS)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.Err = errText.String
	setup, err := ipc.DecodeSetup([]byte(setupJSON))
	if err != nil {
		return nil, fmt.Errorf("run %s: bad setup: %w", r.ID, err)
	}
	r.Setup = setup
	if resultJSON.Valid {
		res, err := spec.DecodeResult([]byte(resultJSON.String))
		if err != nil {
			return nil, fmt.Errorf("run %s: bad result: %w", r.ID, err)
		}
		r.Result = res
	}
	if messagesJSON.Valid {
		if err := json.Unmarshal([]byte(messagesJSON.String), &r.Messages); err != nil {
			return nil, fmt.Errorf("run %s: bad messages: %w", r.ID, err)
		}
	}
	return &r, nil
}

// Get loads one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs first. An empty client lists every
// client; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, client string, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectRun
	var args []interface{}
	if client != "" {
		query += ` WHERE client = ?`
		args = append(args, client)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes runs started before the given time and returns how many
// were removed.
func (s *Store) Delete(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	logging.StoreDebug("pruned %d runs older than %s", n, before.Format(time.RFC3339))
	return n, nil
}
