package testsupport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// MEWCRow is one line of a classifier mewc_out.csv.
type MEWCRow struct {
	Filename  string
	RandName  string
	ClassID   int
	ClassName string
	Prob      float64
	ClassRank int
	Conf      float64
	Taken     *time.Time
}

// WriteMEWC writes <siteDir>/mewc_out.csv in the classifier's column layout,
// including the pandas index column.
func WriteMEWC(t testing.TB, siteDir string, rows []MEWCRow) string {
	t.Helper()

	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", siteDir, err)
	}
	path := filepath.Join(siteDir, "mewc_out.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"", "filename", "rand_name", "class_id", "class_name", "prob", "class_rank", "label", "conf", "date_time_orig"}
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, row := range rows {
		rank := row.ClassRank
		if rank == 0 {
			rank = 1
		}
		taken := ""
		if row.Taken != nil {
			taken = row.Taken.Format("2006:01:02 15:04:05")
		}
		record := []string{
			strconv.Itoa(i),
			row.Filename,
			row.RandName,
			strconv.Itoa(row.ClassID),
			row.ClassName,
			strconv.FormatFloat(row.Prob, 'f', -1, 64),
			strconv.Itoa(rank),
			"animal",
			strconv.FormatFloat(row.Conf, 'f', -1, 64),
			taken,
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush %s: %v", path, err)
	}
	return path
}

// WriteFile writes a small placeholder file, creating parent directories.
func WriteFile(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte{0x42}, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
