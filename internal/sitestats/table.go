package sitestats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"trapsort/internal/fault"
	"trapsort/internal/tablestore"
)

// RequiredColumns must be present in a site table.
var RequiredColumns = []string{"camera_site", "lat", "lon"}

// StatColumns are the columns Update writes, in order.
var StatColumns = []string{
	"first_image",
	"last_image",
	"op_days",
	"animal",
	"days_with_animal",
	"blank",
	"person",
	"vehicle",
	"total_images",
	"days_with_event",
}

// Table is a site table held as raw records so user columns survive a
// rewrite untouched.
type Table struct {
	Header  []string
	Records [][]string
}

// LoadTable reads the site table at path and checks its required columns.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.ErrConfiguration, "sites", "open site table", path, err)
	}
	defer f.Close()
	return ReadTable(f)
}

// ReadTable parses a site table.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fault.Wrap(fault.ErrSchema, "sites", "read header", "empty site table", nil)
	}
	if err != nil {
		return nil, fault.Wrap(fault.ErrSchema, "sites", "read header", "", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	t := &Table{Header: header}
	var missing []string
	for _, col := range RequiredColumns {
		if t.column(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fault.Wrap(fault.ErrSchema, "sites", "check columns",
			"site table must contain "+strings.Join(missing, ", "), nil)
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fault.Wrap(fault.ErrSchema, "sites", "read rows", "", err)
	}
	for _, record := range records {
		for len(record) < len(header) {
			record = append(record, "")
		}
		t.Records = append(t.Records, record)
	}
	return t, nil
}

func (t *Table) column(name string) int {
	for i, col := range t.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// Sites returns the camera_site value of every record in order.
func (t *Table) Sites() []string {
	idx := t.column("camera_site")
	out := make([]string, 0, len(t.Records))
	for _, record := range t.Records {
		out = append(out, strings.TrimSpace(record[idx]))
	}
	return out
}

// Set writes value into the named column of record i, adding the column when
// the table lacks it.
func (t *Table) Set(i int, column, value string) {
	idx := t.column(column)
	if idx < 0 {
		t.Header = append(t.Header, column)
		for j := range t.Records {
			t.Records[j] = append(t.Records[j], "")
		}
		idx = len(t.Header) - 1
	}
	t.Records[i][idx] = value
}

// Get returns the named column of record i, or "" when absent.
func (t *Table) Get(i int, column string) string {
	idx := t.column(column)
	if idx < 0 || idx >= len(t.Records[i]) {
		return ""
	}
	return t.Records[i][idx]
}

// Save writes the table to path atomically.
func (t *Table) Save(path string) error {
	records := make([][]string, 0, len(t.Records)+1)
	records = append(records, t.Header)
	records = append(records, t.Records...)
	if err := tablestore.SaveRecords(path, records); err != nil {
		return fmt.Errorf("save site table: %w", err)
	}
	return nil
}
