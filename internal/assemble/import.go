package assemble

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/scanner"
	"trapsort/internal/tablestore"
)

// ImportOptions configures ImportAI.
type ImportOptions struct {
	// ClassMap validates class ids. When nil the map is derived from the
	// imported rows.
	ClassMap *classmap.Map
	// Skip lists directories not searched for classifier output.
	Skip    []string
	Workers int
}

// Import is a freshly assembled service table.
type Import struct {
	Rows     []detection.Detection
	Sites    []scanner.Site
	Failed   map[string]error
	ClassMap *classmap.Map
}

type siteResult struct {
	rows []detection.Detection
	err  error
}

// ImportAI reads every camera site's classifier output under serviceDir.
// Sites are read concurrently; a site that fails its checks is recorded in
// Failed and left out while the others are imported. Sites keep their file
// row order and are concatenated by site name.
func ImportAI(ctx context.Context, serviceDir string, opts ImportOptions) (Import, error) {
	sites, err := scanner.FindSites(serviceDir, MEWCFile, opts.Skip...)
	if err != nil {
		return Import{}, err
	}
	if len(sites) == 0 {
		return Import{}, fault.Wrap(fault.ErrIntegrity, "import", "find sites",
			fmt.Sprintf("no %s found under %s", MEWCFile, serviceDir), nil)
	}

	results := make([]siteResult, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, site := range sites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := importSite(site, opts.ClassMap)
			results[i] = siteResult{rows: rows, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Import{}, err
	}

	out := Import{Failed: make(map[string]error), ClassMap: opts.ClassMap}
	for i, site := range sites {
		if results[i].err != nil {
			if fault.ScopeOf(results[i].err) == fault.ScopeRun {
				return Import{}, results[i].err
			}
			out.Failed[site.Name] = results[i].err
			continue
		}
		out.Sites = append(out.Sites, site)
		out.Rows = append(out.Rows, results[i].rows...)
	}
	if out.ClassMap == nil && len(out.Rows) > 0 {
		derived, err := classmap.FromDetections(out.Rows)
		if err != nil {
			return Import{}, err
		}
		out.ClassMap = derived
	}
	return out, nil
}

func importSite(site scanner.Site, cmap *classmap.Map) ([]detection.Detection, error) {
	rows, err := ReadMEWC(filepath.Join(site.Dir, MEWCFile), site.Name)
	if err != nil {
		return nil, err
	}
	if err := tablestore.CheckUnique(rows); err != nil {
		return nil, err
	}
	for i := range rows {
		row := &rows[i]
		if row.ClassID >= 0 {
			continue
		}
		id, ok := cmap.ID(row.ClassName)
		if !ok {
			return nil, fault.Integrity(site.Name, "class-map",
				fmt.Sprintf("class %q has no class_id and is not in the class map", row.ClassName)).WithFile(row.Filename)
		}
		row.ClassID = id
	}
	if cmap != nil {
		if err := cmap.Check(rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
