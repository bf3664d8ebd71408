package pipeline

import (
	"context"

	"trapsort/internal/scanner"
	"trapsort/internal/sitestats"
)

// SiteStats refreshes the per-site statistics columns of the site table.
func SiteStats(ctx context.Context, env *Env) (*Report, error) {
	cfg := env.Config
	report := newReport(StageSites)

	t, err := sitestats.LoadTable(cfg.Paths.SiteTable)
	if err != nil {
		return nil, err
	}
	sites, err := scanner.FindSites(cfg.Paths.ServiceDir, sitestats.SiteMarker, env.skipDirs()...)
	if err != nil {
		return nil, err
	}
	stats, err := sitestats.Update(ctx, t, sites, env.Extractor, cfg.WorkerCount(), env.Tally)
	if err != nil {
		return nil, err
	}
	for _, s := range stats {
		report.add("images", s.Total())
		report.add("animal", s.Animal)
		report.add("blank", s.Blank)
		report.add("person", s.Person)
		report.add("vehicle", s.Vehicle)
	}
	report.add("sites", len(stats))
	if err := t.Save(cfg.Paths.SiteTable); err != nil {
		return nil, err
	}
	report.Output = cfg.Paths.SiteTable
	return report, nil
}
