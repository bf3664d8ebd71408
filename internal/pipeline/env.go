package pipeline

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"trapsort/internal/classmap"
	"trapsort/internal/config"
	"trapsort/internal/fault"
	"trapsort/internal/infer"
	"trapsort/internal/logging"
	"trapsort/internal/metadata"
	"trapsort/internal/reconcile"
)

// Env carries the collaborators shared by the stages of one run.
type Env struct {
	Config    *config.Config
	Logger    *slog.Logger
	Extractor *metadata.Extractor
	Tally     *fault.Tally
}

// NewEnv builds the per-run collaborators from cfg.
func NewEnv(cfg *config.Config, logger *slog.Logger) *Env {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Env{
		Config: cfg,
		Logger: logger,
		Extractor: metadata.NewExtractor(
			metadata.WithMTimeFallback(cfg.Pipeline.MTimeFallback),
			metadata.WithLogger(logger),
		),
		Tally: fault.NewTally(0),
	}
}

// skipDirs lists generated directories that may sit inside the service tree
// and are never camera sites.
func (e *Env) skipDirs() []string {
	var out []string
	for _, dir := range []string{e.Config.Paths.ClassifiedSnipsDir, e.Config.Paths.DataTablesDir} {
		if strings.TrimSpace(dir) != "" {
			out = append(out, dir)
		}
	}
	return out
}

func (e *Env) reconcileOptions(level reconcile.Level, cmap *classmap.Map, site string) reconcile.Options {
	return reconcile.Options{
		Level:    level,
		Removal:  reconcile.Removal(e.Config.Pipeline.RemovalPolicy),
		ClassMap: cmap,
		Ignore:   classmap.NewSet(e.Config.Pipeline.IgnoreFolders...),
		Site:     site,
	}
}

func (e *Env) inferOptions(cmap *classmap.Map) infer.Options {
	return infer.Options{
		Threshold: e.Config.Pipeline.LowConfidenceProbThreshold,
		ClassMap:  cmap,
		NonAnimal: classmap.NewSet(e.Config.Pipeline.NonAnimalClasses...),
	}
}

// loadClassMap reads the configured class map. A missing file is not an
// error; callers derive the map from the table instead.
func loadClassMap(cfg *config.Config) (*classmap.Map, error) {
	path := strings.TrimSpace(cfg.Paths.ClassMap)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return classmap.Load(path)
}

// Report summarises one stage run.
type Report struct {
	Stage  string
	Counts map[string]int
	// Failed holds site-scoped failures keyed by camera site, or by file name
	// for stages that read whole tables.
	Failed  map[string]error
	Orphans []string
	Output  string
	Tally   *fault.Tally
}

func newReport(stage string) *Report {
	return &Report{Stage: stage, Counts: make(map[string]int), Failed: make(map[string]error)}
}

func (r *Report) add(key string, n int) {
	r.Counts[key] += n
}

func (r *Report) fail(name string, err error) {
	r.Failed[name] = err
}

// CountKeys returns the count names in sorted order.
func (r *Report) CountKeys() []string {
	keys := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FailedNames returns the failed sites or files in sorted order.
func (r *Report) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func addMutationCounts(r *Report, res reconcile.Result) {
	for kind, n := range res.Counts() {
		r.add(string(kind), n)
	}
}

func addInferCounts(r *Report, summary infer.Summary) {
	r.add("inferred_rows", summary.Relabels)
	for outcome, n := range summary.Events {
		r.add("events_"+string(outcome), n)
	}
}
