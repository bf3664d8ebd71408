package tablestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; older table databases are then rebuilt from the CSV copy.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// DB is the exact-typed copy of a detection table.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB initializes or connects to the table database at path.
func OpenDB(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create table dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &DB{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *DB) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *DB) initSchema(ctx context.Context) error {
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
		return fault.Wrap(fault.ErrSchema, "table", "open",
			fmt.Sprintf("database has version %d, expected %d (delete %s to rebuild it from the csv table)",
				version, schemaVersion, s.path), ErrSchemaMismatch)
	}
	return nil
}

func (s *DB) createSchema(ctx context.Context) error {
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

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

const detectionColumns = `camera_site, filename, snip_name, class_id, class_name, prob, conf,
	"count", "timestamp", flash_fired, expert_updated, event, flag`

// Replace swaps the stored table for rows in one transaction. Row order is
// preserved.
func (s *DB) Replace(ctx context.Context, rows []detection.Detection) error {
	return retryOnBusy(ctx, func() error {
		return s.replace(ctx, rows)
	})
}

func (s *DB) replace(ctx context.Context, rows []detection.Detection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM detections"); err != nil {
		return fmt.Errorf("clear detections: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO detections (position, `+detectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			i,
			row.CameraSite,
			row.Filename,
			row.SnipName,
			row.ClassID,
			row.ClassName,
			row.Prob,
			row.Conf,
			row.Count,
			nullableTime(row.Timestamp),
			nullableFlash(row.Flash),
			int(row.ExpertUpdated),
			row.EventID,
			string(row.Flag),
		); err != nil {
			return fmt.Errorf("insert %s/%s: %w", row.CameraSite, row.Filename, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Rows returns every stored detection in table order.
func (s *DB) Rows(ctx context.Context) ([]detection.Detection, error) {
	query := `SELECT ` + detectionColumns + ` FROM detections ORDER BY position`
	dbRows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer dbRows.Close()

	var out []detection.Detection
	for dbRows.Next() {
		row, err := scanDetection(dbRows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(scanner rowScanner) (detection.Detection, error) {
	var (
		row       detection.Detection
		timestamp sql.NullString
		flash     sql.NullInt64
		code      int
		flag      string
	)
	if err := scanner.Scan(
		&row.CameraSite,
		&row.Filename,
		&row.SnipName,
		&row.ClassID,
		&row.ClassName,
		&row.Prob,
		&row.Conf,
		&row.Count,
		&timestamp,
		&flash,
		&code,
		&row.EventID,
		&flag,
	); err != nil {
		return row, fmt.Errorf("scan detection: %w", err)
	}
	if timestamp.Valid {
		ts, err := time.Parse(time.RFC3339Nano, timestamp.String)
		if err != nil {
			return row, fault.Wrap(fault.ErrSchema, "table", "scan", row.CameraSite+"/"+row.Filename, err)
		}
		ts = ts.UTC()
		row.Timestamp = &ts
	}
	if flash.Valid {
		row.Flash = detection.FlashFromBool(flash.Int64 == 1)
	}
	row.ExpertUpdated = detection.Provenance(code)
	row.Flag = detection.Flag(flag)
	return row, nil
}

func nullableTime(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func nullableFlash(f detection.FlashState) any {
	switch f {
	case detection.FlashOn:
		return 1
	case detection.FlashOff:
		return 0
	default:
		return nil
	}
}
