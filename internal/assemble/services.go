package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trapsort/internal/config"
	"trapsort/internal/tablestore"
)

// MergedTableName is the file MergeServices output is written to inside the
// data tables directory. It is never read back as an input.
const MergedTableName = "merged_data_table.csv"

// LoadServiceTables reads every .csv table in dir. Files that are not valid
// detection tables are returned in rejected with the reason and skipped.
// Each table's source label is its file name without extension.
func LoadServiceTables(dir string) ([]ServiceTable, map[string]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read data tables dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), config.ExtCSV) || name == MergedTableName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	rejected := make(map[string]error)
	var tables []ServiceTable
	for _, name := range names {
		rows, err := tablestore.LoadCSV(filepath.Join(dir, name))
		if err != nil {
			rejected[name] = err
			continue
		}
		if len(rows) == 0 {
			rejected[name] = fmt.Errorf("%s has no rows", name)
			continue
		}
		tables = append(tables, ServiceTable{
			Source: strings.TrimSuffix(name, filepath.Ext(name)),
			Rows:   rows,
		})
	}
	return tables, rejected, nil
}
