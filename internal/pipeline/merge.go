package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"trapsort/internal/assemble"
	"trapsort/internal/fault"
	"trapsort/internal/tablestore"
)

// MergeTables concatenates every finished service table in the data tables
// directory into one labelled table.
func MergeTables(ctx context.Context, env *Env) (*Report, error) {
	cfg := env.Config
	report := newReport(StageMerge)

	tables, failed, err := assemble.LoadServiceTables(cfg.Paths.DataTablesDir)
	if err != nil {
		return nil, err
	}
	for name, tableErr := range failed {
		report.fail(name, tableErr)
	}
	if len(tables) == 0 {
		return nil, fault.Wrap(fault.ErrConfiguration, "merge", "load tables",
			fmt.Sprintf("no service tables in %s", cfg.Paths.DataTablesDir), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := assemble.MergeServices(tables)
	out := filepath.Join(cfg.Paths.DataTablesDir, assemble.MergedTableName)
	if err := tablestore.SaveMergedCSV(out, rows); err != nil {
		return nil, err
	}
	report.add("tables", len(tables))
	report.add("rows", len(rows))
	report.Output = out
	return report, nil
}
