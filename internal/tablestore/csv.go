package tablestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

// TimestampLayout is the day-first layout written to CSV tables.
const TimestampLayout = "02/01/2006 15:04:05"

// NA is the CSV null marker.
const NA = "NA"

// timestampLayouts are accepted on read, most specific first. Older tables
// written by other tools use ISO or EXIF ordering.
var timestampLayouts = []string{
	TimestampLayout,
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006:01:02 15:04:05",
	time.RFC3339Nano,
}

func isNull(value string) bool {
	switch strings.TrimSpace(value) {
	case "", NA, "NaN", "nan", "NaT", "None", "null":
		return true
	}
	return false
}

// FormatTimestamp renders ts in TimestampLayout, or NA when nil.
func FormatTimestamp(ts *time.Time) string {
	if ts == nil {
		return NA
	}
	return ts.Format(TimestampLayout)
}

// ParseTimestamp reads a timestamp cell. Null markers yield nil.
func ParseTimestamp(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if isNull(value) {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			ts = ts.UTC()
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", value)
}

func formatFlash(f detection.FlashState) string {
	switch f {
	case detection.FlashOn:
		return "1"
	case detection.FlashOff:
		return "0"
	default:
		return NA
	}
}

func parseFlash(value string) (detection.FlashState, error) {
	value = strings.TrimSpace(value)
	if isNull(value) {
		return detection.FlashUnknown, nil
	}
	switch strings.ToLower(value) {
	case "1", "1.0", "true":
		return detection.FlashOn, nil
	case "0", "0.0", "false":
		return detection.FlashOff, nil
	}
	return detection.FlashUnknown, fmt.Errorf("unrecognised flash value %q", value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseInt accepts integral floats ("3.0") since spreadsheet round-trips
// widen integer columns.
func parseInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", value)
	}
	return int(f), nil
}

// WriteCSV writes rows with a header of detection.Columns.
func WriteCSV(w io.Writer, rows []detection.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(detection.Columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(row detection.Detection) []string {
	return []string{
		row.CameraSite,
		row.Filename,
		row.SnipName,
		strconv.Itoa(row.ClassID),
		row.ClassName,
		formatFloat(row.Prob),
		formatFloat(row.Conf),
		strconv.Itoa(row.Count),
		FormatTimestamp(row.Timestamp),
		formatFlash(row.Flash),
		strconv.Itoa(int(row.ExpertUpdated)),
		strconv.Itoa(row.EventID),
		string(row.Flag),
	}
}

// ReadCSV parses a detection table. Column order is free; every required
// column must be present or the error carries fault.ErrSchema. Unknown
// columns are ignored.
func ReadCSV(r io.Reader) ([]detection.Detection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fault.Wrap(fault.ErrSchema, "table", "read header", "empty table", nil)
	}
	if err != nil {
		return nil, fault.Wrap(fault.ErrSchema, "table", "read header", "", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range detection.RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fault.Wrap(fault.ErrSchema, "table", "check columns",
			"missing required column(s) "+strings.Join(missing, ", "), nil)
	}

	var rows []detection.Detection
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fault.Wrap(fault.ErrSchema, "table", "read row", fmt.Sprintf("line %d", line), err)
		}
		row, err := parseRecord(record, index)
		if err != nil {
			return nil, fault.Wrap(fault.ErrSchema, "table", "parse row", fmt.Sprintf("line %d", line), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(record []string, index map[string]int) (detection.Detection, error) {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	var (
		row detection.Detection
		err error
	)
	row.CameraSite = detection.NormalizeSite(cell(detection.ColCameraSite))
	row.Filename = strings.TrimSpace(cell(detection.ColFilename))
	if row.CameraSite == "" || row.Filename == "" {
		return row, errors.New("camera_site and filename are required")
	}
	if v := cell(detection.ColSnipName); !isNull(v) {
		row.SnipName = strings.TrimSpace(v)
	}
	if row.ClassID, err = parseInt(cell(detection.ColClassID)); err != nil {
		return row, fmt.Errorf("class_id: %w", err)
	}
	row.ClassName = strings.TrimSpace(cell(detection.ColClassName))
	if row.Prob, err = strconv.ParseFloat(strings.TrimSpace(cell(detection.ColProb)), 64); err != nil {
		return row, fmt.Errorf("prob: %w", err)
	}
	if v := cell(detection.ColConf); !isNull(v) {
		if row.Conf, err = strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return row, fmt.Errorf("conf: %w", err)
		}
	}
	if v := cell(detection.ColCount); !isNull(v) {
		if row.Count, err = parseInt(v); err != nil {
			return row, fmt.Errorf("count: %w", err)
		}
	}
	if row.Timestamp, err = ParseTimestamp(cell(detection.ColTimestamp)); err != nil {
		return row, fmt.Errorf("timestamp: %w", err)
	}
	if row.Flash, err = parseFlash(cell(detection.ColFlashFired)); err != nil {
		return row, fmt.Errorf("flash_fired: %w", err)
	}
	code, err := parseInt(cell(detection.ColExpertUpdated))
	if err != nil {
		return row, fmt.Errorf("expert_updated: %w", err)
	}
	row.ExpertUpdated = detection.Provenance(code)
	if !row.ExpertUpdated.Valid() {
		return row, fmt.Errorf("expert_updated: unknown provenance code %d", code)
	}
	if v := cell(detection.ColEvent); !isNull(v) {
		if row.EventID, err = parseInt(v); err != nil {
			return row, fmt.Errorf("event: %w", err)
		}
	}
	if v := cell(detection.ColFlag); !isNull(v) {
		row.Flag = detection.Flag(strings.TrimSpace(v))
	}
	return row, nil
}

// LoadCSV reads the table at path.
func LoadCSV(path string) ([]detection.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()
	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// SaveCSV writes rows to path through a temporary sibling so readers never
// see a partial table.
func SaveCSV(path string, rows []detection.Detection) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, rows)
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// SaveRecords writes raw CSV records to path atomically. It serves tables
// outside the detection schema, such as the site table.
func SaveRecords(path string, records [][]string) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(records); err != nil {
			return err
		}
		return cw.Error()
	})
}
