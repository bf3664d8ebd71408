package pipeline

import (
	"context"

	"trapsort/internal/assemble"
	"trapsort/internal/breakout"
)

// BreakoutSnips copies every site's classifier snips into the classified
// tree by species and probability bin so a person can sort them.
func BreakoutSnips(ctx context.Context, env *Env) (*Report, error) {
	cfg := env.Config
	report := newReport(StageBreakout)

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

	res, err := breakout.Snips(ctx, imp.Rows, imp.Sites, breakout.SnipOptions{
		ClassifiedDir: cfg.Paths.ClassifiedSnipsDir,
		Bins:          cfg.Pipeline.ProbabilityBins,
		Logger:        env.Logger,
	}, env.Tally)
	if err != nil {
		return nil, err
	}
	report.add("sites", len(imp.Sites))
	report.add("snips_copied", res.Copied)
	report.add("snips_present", res.Present)
	report.add("snips_failed", res.Failed)
	report.Output = cfg.Paths.ClassifiedSnipsDir
	return report, nil
}
