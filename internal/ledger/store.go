package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"trapsort/internal/fault"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger was written by another schema
// version.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryBackoff  = 20 * time.Millisecond
)

// Store wraps the ledger database.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

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

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fault.Wrap(fault.ErrSchema, "ledger", "open",
			fmt.Sprintf("ledger has version %d, expected %d (delete %s to reset it)", version, schemaVersion, s.path),
			ErrSchemaMismatch)
	}
	return nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	var err error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-time.After(busyRetryBackoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func isBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// Begin records the start of a stage. An empty id is replaced by a fresh
// UUID.
func (s *Store) Begin(ctx context.Context, id, stage, serviceDir string) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	run := &Run{
		ID:         id,
		Stage:      stage,
		Status:     StatusRunning,
		ServiceDir: serviceDir,
		StartedAt:  time.Now().UTC(),
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, stage, status, service_dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Stage, string(run.Status), nullableString(serviceDir), run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the outcome of run. A nil runErr with no failed sites
// succeeds; failedSites > 0 marks the run partial.
func (s *Store) Finish(ctx context.Context, run *Run, summary map[string]int, failedSites int, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Summary = summary
	switch {
	case runErr != nil:
		run.Status = StatusFailed
		run.ErrorMessage = runErr.Error()
	case failedSites > 0:
		run.Status = StatusPartial
	default:
		run.Status = StatusSucceeded
	}
	var summaryJSON any
	if len(summary) > 0 {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		summaryJSON = string(data)
	}
	err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, summary_json = ?, error_message = ? WHERE id = ?`,
		string(run.Status), now.Format(time.RFC3339Nano), summaryJSON, nullableString(run.ErrorMessage), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Record stores err against runID. Structured diagnostics keep their site,
// file, class id and invariant; other errors keep the site given.
func (s *Store) Record(ctx context.Context, runID, site string, err error) error {
	d := Diagnostic{RunID: runID, Scope: fault.ScopeOf(err).String(), Site: site, Message: err.Error()}
	if diag, ok := fault.Details(err); ok {
		if diag.Site != "" {
			d.Site = diag.Site
		}
		d.File = diag.File
		d.ClassID = diag.ClassID
		d.Invariant = diag.Invariant
	}
	var classID any
	if d.ClassID != nil {
		classID = *d.ClassID
	}
	execErr := s.execWithRetry(ctx,
		`INSERT INTO diagnostics (run_id, scope, camera_site, filename, class_id, invariant, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Scope, nullableString(d.Site), nullableString(d.File), classID, nullableString(d.Invariant), d.Message,
	)
	if execErr != nil {
		return fmt.Errorf("insert diagnostic: %w", execErr)
	}
	return nil
}

const runColumns = "id, stage, status, service_dir, started_at, finished_at, summary_json, error_message"

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Get returns the run with id. A unique id prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id LIKE ? || '%' ORDER BY started_at DESC LIMIT 2", id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()
	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// Diagnostics returns the diagnostics stored for runID in insertion order.
func (s *Store) Diagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, scope, camera_site, filename, class_id, invariant, message
		 FROM diagnostics WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()
	var out []Diagnostic
	for rows.Next() {
		var (
			d         Diagnostic
			site      sql.NullString
			file      sql.NullString
			classID   sql.NullInt64
			invariant sql.NullString
		)
		if err := rows.Scan(&d.RunID, &d.Scope, &site, &file, &classID, &invariant, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Site, d.File, d.Invariant = site.String, file.String, invariant.String
		if classID.Valid {
			id := int(classID.Int64)
			d.ClassID = &id
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		status      string
		serviceDir  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
		summaryRaw  sql.NullString
		errorMsg    sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.Stage, &status, &serviceDir, &startedRaw, &finishedRaw, &summaryRaw, &errorMsg); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.ServiceDir = serviceDir.String
	run.ErrorMessage = errorMsg.String
	if ts, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	if summaryRaw.Valid && summaryRaw.String != "" {
		if err := json.Unmarshal([]byte(summaryRaw.String), &run.Summary); err != nil {
			return Run{}, fmt.Errorf("decode run summary: %w", err)
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
