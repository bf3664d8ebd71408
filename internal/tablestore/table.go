package tablestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"trapsort/internal/config"
	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

// ErrNoTable reports that neither table sibling exists.
var ErrNoTable = errors.New("no detection table found")

// Table addresses the .csv and .db siblings of one base path.
type Table struct {
	Base string
}

// New returns the table at base, a path without extension.
func New(base string) Table {
	return Table{Base: base}
}

// CSVPath returns the portable copy path.
func (t Table) CSVPath() string { return t.Base + config.ExtCSV }

// DBPath returns the exact-typed copy path.
func (t Table) DBPath() string { return t.Base + config.ExtDB }

// XLSXPath returns the default export path.
func (t Table) XLSXPath() string { return t.Base + config.ExtXLSX }

// Exists reports whether either sibling is present.
func (t Table) Exists() bool {
	for _, path := range []string{t.DBPath(), t.CSVPath()} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// Load reads the table, preferring the exact-typed database and falling back
// to the CSV copy.
func (t Table) Load(ctx context.Context) ([]detection.Detection, error) {
	if _, err := os.Stat(t.DBPath()); err == nil {
		db, err := OpenDB(ctx, t.DBPath())
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.Rows(ctx)
	}
	rows, err := LoadCSV(t.CSVPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoTable, t.Base)
	}
	return rows, err
}

// Save validates the unique key and writes both siblings.
func (t Table) Save(ctx context.Context, rows []detection.Detection) error {
	if err := CheckUnique(rows); err != nil {
		return err
	}
	db, err := OpenDB(ctx, t.DBPath())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Replace(ctx, rows); err != nil {
		return err
	}
	return SaveCSV(t.CSVPath(), rows)
}

// CheckUnique verifies that (camera_site, filename) is unique across rows.
func CheckUnique(rows []detection.Detection) error {
	seen := make(map[detection.Key]struct{}, len(rows))
	for _, row := range rows {
		key := row.Key()
		if _, ok := seen[key]; ok {
			return fault.Integrity(row.CameraSite, "unique-key",
				"camera_site and filename must identify one row").WithFile(row.Filename)
		}
		seen[key] = struct{}{}
	}
	return nil
}
