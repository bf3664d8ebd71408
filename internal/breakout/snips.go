package breakout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/fileutil"
	"trapsort/internal/logging"
	"trapsort/internal/scanner"
)

// SnipsDir is the per-site folder the classifier writes snips into.
const SnipsDir = "snips"

// SnipOptions configures Snips.
type SnipOptions struct {
	ClassifiedDir string
	Bins          []int
	Logger        *slog.Logger
}

// SnipResult summarises a snip breakout.
type SnipResult struct {
	Copied int
	// Present counts snips already somewhere in the classified tree.
	Present int
	Failed  int
}

// Snips copies every row's snip from <site>/snips into
// <classified>/<class_name>/<bin>/. A snip already present anywhere in the
// classified tree is left alone. Missing or unreadable snips are tallied
// under "snip" and skipped.
func Snips(ctx context.Context, rows []detection.Detection, sites []scanner.Site, opts SnipOptions, tally *fault.Tally) (SnipResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "breakout")
	if strings.TrimSpace(opts.ClassifiedDir) == "" {
		return SnipResult{}, fault.Wrap(fault.ErrConfiguration, "breakout", "snips", "classified snips directory is not set", nil)
	}
	present, err := existingFiles(opts.ClassifiedDir)
	if err != nil {
		return SnipResult{}, fault.Wrap(fault.ErrIntegrity, "breakout", "scan classified tree", opts.ClassifiedDir, err)
	}

	snipDirs := make(map[string]string, len(sites))
	for _, site := range sites {
		dir, err := childFolder(site.Dir, SnipsDir)
		if err != nil {
			return SnipResult{}, fault.Integrity(site.Name, "snips-present", "no snips folder next to the classifier output").WithCause(err)
		}
		snipDirs[site.Name] = dir
	}

	var res SnipResult
	progress := logging.NewProgress(logger, "snip breakout progress", len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if row.SnipName == "" {
			continue
		}
		if _, ok := present[row.SnipName]; ok {
			res.Present++
			continue
		}
		dir, ok := snipDirs[row.CameraSite]
		if !ok {
			res.Failed++
			tally.Record("snip", row.SnipName, fmt.Errorf("no snips folder for site %s", row.CameraSite))
			continue
		}
		dst := filepath.Join(opts.ClassifiedDir, row.ClassName, ProbabilityBin(row.Prob, opts.Bins), row.SnipName)
		if err := fileutil.CopyImage(filepath.Join(dir, row.SnipName), dst); err != nil {
			res.Failed++
			tally.Record("snip", row.SnipName, err)
			continue
		}
		present[row.SnipName] = struct{}{}
		res.Copied++
		progress.Advance(1)
	}
	logger.Info("snip breakout complete",
		logging.Int("copied", res.Copied),
		logging.Int("already_present", res.Present),
		logging.Int("failed", res.Failed),
	)
	return res, nil
}

// existingFiles returns the names of every file under root. A missing root
// is empty.
func existingFiles(root string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			out[d.Name()] = struct{}{}
		}
		return nil
	})
	return out, err
}

// childFolder finds the sub-folder of dir named name, ignoring case.
func childFolder(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%s: %w", filepath.Join(dir, name), fs.ErrNotExist)
}
