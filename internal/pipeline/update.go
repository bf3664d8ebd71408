package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"trapsort/internal/breakout"
	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/events"
	"trapsort/internal/fault"
	"trapsort/internal/infer"
	"trapsort/internal/logging"
	"trapsort/internal/reconcile"
	"trapsort/internal/scanner"
	"trapsort/internal/tablestore"
)

type siteReconcile struct {
	site scanner.Site
	snap scanner.Snapshot
	res  reconcile.Result
	err  error
}

// UpdateTable reconciles the table with every site's sorted animal folders,
// back-fills capture metadata from the sorted images, and recomputes events,
// inferences and per-image counts.
func UpdateTable(ctx context.Context, env *Env) (*Report, error) {
	cfg := env.Config
	logger := logging.WithContext(ctx, env.Logger)
	report := newReport(StageUpdate)

	table := tablestore.New(cfg.Paths.OutputTable)
	before, err := table.Load(ctx)
	if err != nil {
		return nil, err
	}
	cmap, err := loadClassMap(cfg)
	if err != nil {
		return nil, err
	}
	if cmap == nil {
		if cmap, err = classmap.FromDetections(before); err != nil {
			return nil, err
		}
	}

	sites, err := scanner.FindSites(cfg.Paths.ServiceDir, breakout.AnimalsDir, env.skipDirs()...)
	if err != nil {
		return nil, err
	}
	report.add("sites", len(sites))

	results := make([]siteReconcile, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WorkerCount())
	for i, site := range sites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = reconcileSite(before, site, env.reconcileOptions(reconcile.LevelImage, cmap, site.Name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := before
	added := make(map[detection.Key]string)
	snaps := make(map[string]scanner.Snapshot, len(results))
	for _, r := range results {
		if r.err != nil {
			if fault.ScopeOf(r.err) == fault.ScopeRun {
				return nil, r.err
			}
			logger.Debug("site reconcile failed", logging.Args(logging.Failure(r.err)...)...)
			report.fail(r.site.Name, r.err)
			continue
		}
		next, err := reconcile.Apply(rows, r.res)
		if err != nil {
			if fault.ScopeOf(err) == fault.ScopeRun {
				return nil, err
			}
			report.fail(r.site.Name, err)
			continue
		}
		rows = next
		snaps[r.site.Name] = r.snap
		addMutationCounts(report, r.res)
		report.Orphans = append(report.Orphans, r.res.Orphans...)
		for key, path := range reconcile.AddedPaths(r.res) {
			added[key] = path
		}
	}

	filled, err := backfill(ctx, env, rows, snaps, added)
	if err != nil {
		return nil, err
	}
	report.add("flash_filled", filled.flash)
	report.add("timestamps_filled", filled.timestamp)

	rows = events.Assign(rows, cfg.EventInterval())
	rows, summary := infer.Resolve(rows, env.inferOptions(cmap))
	addInferCounts(report, summary)
	rows = events.CountPerImage(rows)

	if err := checkMonotone(before, rows); err != nil {
		return nil, err
	}
	if err := table.Save(ctx, rows); err != nil {
		return nil, err
	}
	report.add("rows", len(rows))
	report.Output = table.CSVPath()
	return report, nil
}

func reconcileSite(rows []detection.Detection, site scanner.Site, opts reconcile.Options) siteReconcile {
	snap, err := scanner.Scan(filepath.Join(site.Dir, breakout.AnimalsDir))
	if err != nil {
		return siteReconcile{site: site, err: withSite(err, site.Name)}
	}
	res, err := reconcile.Reconcile(rows, snap, opts)
	if err != nil {
		return siteReconcile{site: site, err: withSite(err, site.Name)}
	}
	return siteReconcile{site: site, snap: snap, res: res}
}

// withSite stamps a site name onto diagnostics raised without one.
func withSite(err error, site string) error {
	if diag, ok := fault.Details(err); ok && diag.Site == "" {
		diag.Site = site
	}
	return err
}

type filledCounts struct {
	flash     int
	timestamp int
}

// backfill reads capture metadata from the sorted animal images. Rows
// created from image files take both timestamp and flash from their file.
// Every other row is matched to its image by site and base filename and
// only fills what it lacks: flash when unknown, timestamp when null. rows
// is updated in place.
func backfill(ctx context.Context, env *Env, rows []detection.Detection, snaps map[string]scanner.Snapshot, added map[detection.Key]string) (filledCounts, error) {
	var filled filledCounts
	sources := make([]string, len(rows))
	var paths []string
	seen := make(map[string]struct{})
	for i, row := range rows {
		path, ok := added[row.Key()]
		if !ok {
			if row.Flash.Known() && row.Timestamp != nil {
				continue
			}
			entry, found := snaps[row.CameraSite].Lookup(scanner.BaseFilename(row.Filename))
			if !found {
				continue
			}
			path = entry.Path
		}
		sources[i] = path
		if _, dup := seen[path]; !dup {
			seen[path] = struct{}{}
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return filled, nil
	}

	meta, err := env.Extractor.ExtractAll(ctx, paths, env.Config.WorkerCount(), env.Tally)
	if err != nil {
		return filled, err
	}
	for i := range rows {
		if sources[i] == "" {
			continue
		}
		res := meta[sources[i]]
		if _, fresh := added[rows[i].Key()]; fresh {
			rows[i].Timestamp = res.Timestamp
			rows[i].Flash = res.Flash
			continue
		}
		if !rows[i].Flash.Known() && res.Flash.Known() {
			rows[i].Flash = res.Flash
			filled.flash++
		}
		if rows[i].Timestamp == nil && res.Timestamp != nil {
			ts := *res.Timestamp
			rows[i].Timestamp = &ts
			filled.timestamp++
		}
	}
	return filled, nil
}

// checkMonotone verifies that no surviving row lost provenance.
func checkMonotone(before, after []detection.Detection) error {
	prev := make(map[detection.Key]detection.Provenance, len(before))
	for _, row := range before {
		prev[row.Key()] = row.ExpertUpdated
	}
	for _, row := range after {
		was, ok := prev[row.Key()]
		if ok && row.ExpertUpdated < was {
			return fault.Integrity(row.CameraSite, "provenance-monotone",
				fmt.Sprintf("expert_updated fell from %d to %d", was, row.ExpertUpdated)).WithFile(row.Filename)
		}
	}
	return nil
}
