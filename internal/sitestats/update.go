package sitestats

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"trapsort/internal/fault"
	"trapsort/internal/metadata"
	"trapsort/internal/scanner"
)

// SiteMarker is the detector output file that marks a camera-site folder.
const SiteMarker = "md_out.json"

// Check verifies that the table and the service tree list the same sites and
// that every site folder holds an animal or blank folder.
func Check(t *Table, sites []scanner.Site) error {
	listed := make(map[string]struct{})
	for _, name := range t.Sites() {
		listed[name] = struct{}{}
	}
	found := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		found[site.Name] = struct{}{}
	}
	if missing := difference(listed, found); len(missing) > 0 {
		return fault.Integrity("", "site-table-match",
			"no site folder for "+strings.Join(missing, ", "))
	}
	if unlisted := difference(found, listed); len(unlisted) > 0 {
		return fault.Integrity("", "site-table-match",
			"site folders not listed in the site table: "+strings.Join(unlisted, ", "))
	}
	for _, site := range sites {
		entries, err := os.ReadDir(site.Dir)
		if err != nil {
			return fault.Integrity(site.Name, "site-buckets", "cannot read site folder").WithCause(err)
		}
		ok := false
		for _, entry := range entries {
			if entry.IsDir() && (entry.Name() == BucketAnimal || entry.Name() == BucketBlank) {
				ok = true
				break
			}
		}
		if !ok {
			return fault.Integrity(site.Name, "site-buckets", "site folder has no animal or blank folder")
		}
	}
	return nil
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for name := range a {
		if _, ok := b[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Update computes statistics for every site in t and writes them into the
// table's StatColumns. t is modified in place; the per-site results are
// returned keyed by site name.
func Update(ctx context.Context, t *Table, sites []scanner.Site, ex *metadata.Extractor, workers int, tally *fault.Tally) (map[string]Stats, error) {
	if err := Check(t, sites); err != nil {
		return nil, err
	}
	dirs := make(map[string]string, len(sites))
	for _, site := range sites {
		dirs[site.Name] = site.Dir
	}
	out := make(map[string]Stats, len(sites))
	for i, name := range t.Sites() {
		stats, ok := out[name]
		if !ok {
			var err error
			stats, err = Compute(ctx, dirs[name], ex, workers, tally)
			if err != nil {
				return nil, fmt.Errorf("site %s: %w", name, err)
			}
			out[name] = stats
		}
		for j, value := range stats.Values() {
			t.Set(i, StatColumns[j], value)
		}
	}
	return out, nil
}
