package breakout

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/fileutil"
	"trapsort/internal/logging"
	"trapsort/internal/scanner"
)

// AnimalsDir is the per-site folder holding images the detector flagged as
// animals.
const AnimalsDir = "animal"

// AnimalOptions configures Animals.
type AnimalOptions struct {
	// Other is the folder for images with no table row.
	Other  string
	Logger *slog.Logger
}

// AnimalResult summarises an animal breakout.
type AnimalResult struct {
	Sites  int
	Moved  int
	Other  int
	Failed int
}

type imageKey struct {
	site string
	base string
}

// imageClasses maps each (site, base filename) to the class of its highest
// probability row. Equal probabilities keep the first row. Rows flagged
// missing are left out since their snip was removed during review.
func imageClasses(rows []detection.Detection) map[imageKey]string {
	best := make(map[imageKey]detection.Detection)
	for _, row := range rows {
		if row.Flag == detection.FlagMissing {
			continue
		}
		key := imageKey{site: row.CameraSite, base: scanner.BaseFilename(row.Filename)}
		if cur, ok := best[key]; ok && cur.Prob >= row.Prob {
			continue
		}
		best[key] = row
	}
	out := make(map[imageKey]string, len(best))
	for key, row := range best {
		out[key] = row.ClassName
	}
	return out
}

// Animals moves the images lying directly in each site's animal folder into
// animal/<class_name>/, using the class of the image's best detection.
// Images without a detection go to the Other folder. Images already inside a
// class folder are not touched. Move failures are tallied under "animal".
func Animals(ctx context.Context, rows []detection.Detection, sites []scanner.Site, opts AnimalOptions, tally *fault.Tally) (AnimalResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "breakout")
	other := opts.Other
	if other == "" {
		other = "other_object"
	}
	classes := imageClasses(rows)
	perSite := make(map[string][]string)
	for key, class := range classes {
		perSite[key.site] = append(perSite[key.site], class)
	}

	var res AnimalResult
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		animalDir, err := childFolder(site.Dir, AnimalsDir)
		if err != nil {
			continue
		}
		res.Sites++
		siteLogger := logger.With(logging.String(logging.FieldCameraSite, site.Name))

		names := perSite[site.Name]
		sort.Strings(names)
		for _, class := range names {
			if err := os.MkdirAll(filepath.Join(animalDir, class), 0o755); err != nil {
				return res, fault.Wrap(fault.ErrIntegrity, "breakout", "create class folder", filepath.Join(animalDir, class), err)
			}
		}

		entries, err := os.ReadDir(animalDir)
		if err != nil {
			return res, fault.Wrap(fault.ErrIntegrity, "breakout", "read animal folder", animalDir, err)
		}
		moved, toOther := 0, 0
		for _, entry := range entries {
			if entry.IsDir() || !scanner.IsImage(entry.Name()) {
				continue
			}
			class, ok := classes[imageKey{site: site.Name, base: scanner.BaseFilename(entry.Name())}]
			if !ok {
				class = other
			}
			src := filepath.Join(animalDir, entry.Name())
			if err := fileutil.MoveImage(src, filepath.Join(animalDir, class, entry.Name())); err != nil {
				res.Failed++
				tally.Record("animal", src, err)
				continue
			}
			if ok {
				moved++
			} else {
				toOther++
			}
		}
		res.Moved += moved
		res.Other += toOther
		siteLogger.Info("animal breakout complete",
			logging.Int("moved", moved),
			logging.Int("other", toOther),
		)
	}
	return res, nil
}
