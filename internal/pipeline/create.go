package pipeline

import (
	"context"
	"errors"

	"trapsort/internal/assemble"
	"trapsort/internal/breakout"
	"trapsort/internal/events"
	"trapsort/internal/infer"
	"trapsort/internal/logging"
	"trapsort/internal/reconcile"
	"trapsort/internal/scanner"
	"trapsort/internal/tablestore"
)

// CreateTable builds the service table from the classifier output and the
// sorted snip tree, then breaks each site's animal images out by species.
//
// An existing table is merged rather than replaced: rows carrying a higher
// provenance than the fresh import, and rows the import does not know, are
// kept.
func CreateTable(ctx context.Context, env *Env) (*Report, error) {
	cfg := env.Config
	logger := logging.WithContext(ctx, env.Logger)
	report := newReport(StageCreate)

	removed, err := scanner.CheckFlat(cfg.Paths.ClassifiedSnipsDir)
	if err != nil {
		return nil, err
	}
	report.add("empty_folders_removed", len(removed))

	cmap, err := loadClassMap(cfg)
	if err != nil {
		return nil, err
	}
	imp, err := assemble.ImportAI(ctx, cfg.Paths.ServiceDir, assemble.ImportOptions{
		ClassMap: cmap,
		Skip:     env.skipDirs(),
		Workers:  cfg.WorkerCount(),
	})
	if err != nil {
		return nil, err
	}
	for site, siteErr := range imp.Failed {
		report.fail(site, siteErr)
	}
	report.add("sites", len(imp.Sites))

	snap, err := scanner.Scan(cfg.Paths.ClassifiedSnipsDir)
	if err != nil {
		return nil, err
	}
	res, err := reconcile.Reconcile(imp.Rows, snap, env.reconcileOptions(reconcile.LevelSnip, imp.ClassMap, ""))
	if err != nil {
		return nil, err
	}
	rows, err := reconcile.Apply(imp.Rows, res)
	if err != nil {
		return nil, err
	}
	addMutationCounts(report, res)
	report.Orphans = append(report.Orphans, res.Orphans...)

	table := tablestore.New(cfg.Paths.OutputTable)
	existing, err := table.Load(ctx)
	switch {
	case err == nil:
		var stats assemble.MergeStats
		rows, stats = assemble.Merge(existing, rows)
		report.add("merge_kept", stats.Kept)
		logger.Info("merged with existing table",
			logging.Int("added", stats.Added),
			logging.Int("replaced", stats.Replaced),
			logging.Int("kept", stats.Kept),
		)
	case errors.Is(err, tablestore.ErrNoTable):
	default:
		return nil, err
	}

	rows = events.Assign(rows, cfg.EventInterval())
	rows, summary := infer.Resolve(rows, env.inferOptions(imp.ClassMap))
	addInferCounts(report, summary)

	if err := table.Save(ctx, rows); err != nil {
		return nil, err
	}
	report.add("rows", len(rows))
	report.Output = table.CSVPath()

	sites, err := scanner.FindSites(cfg.Paths.ServiceDir, breakout.AnimalsDir, env.skipDirs()...)
	if err != nil {
		return nil, err
	}
	moved, err := breakout.Animals(ctx, rows, sites, breakout.AnimalOptions{Logger: env.Logger}, env.Tally)
	if err != nil {
		return nil, err
	}
	report.add("images_sorted", moved.Moved)
	report.add("images_other", moved.Other)
	return report, nil
}
