package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"trapsort/internal/config"
	"trapsort/internal/fault"
	"trapsort/internal/ledger"
	"trapsort/internal/logging"
	"trapsort/internal/preflight"
	"trapsort/internal/tablestore"
)

// Stage names as recorded in logs and the run ledger.
const (
	StageBreakout = "breakout_snips"
	StageCreate   = "table_create"
	StageUpdate   = "table_update"
	StageSites    = "site_stats"
	StageMerge    = "merge_services"
)

// Stage describes one runnable pipeline stage.
type Stage struct {
	Name string
	// Requirements lists the paths checked before the stage starts.
	Requirements func(*config.Config) []preflight.Requirement
	// Locked stages hold the table writer lock while they run.
	Locked bool
	Run    func(context.Context, *Env) (*Report, error)
}

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{
		{
			Name: StageBreakout,
			Requirements: func(cfg *config.Config) []preflight.Requirement {
				return []preflight.Requirement{
					{Name: "service directory", Path: cfg.Paths.ServiceDir, Access: preflight.Read},
					{Name: "classified snips", Path: cfg.Paths.ClassifiedSnipsDir, Access: preflight.Creatable},
				}
			},
			Run: BreakoutSnips,
		},
		{
			Name: StageCreate,
			Requirements: func(cfg *config.Config) []preflight.Requirement {
				return []preflight.Requirement{
					{Name: "service directory", Path: cfg.Paths.ServiceDir, Access: preflight.Write},
					{Name: "classified snips", Path: cfg.Paths.ClassifiedSnipsDir, Access: preflight.Write},
					{Name: "table directory", Path: filepath.Dir(cfg.Paths.OutputTable), Access: preflight.Write},
				}
			},
			Locked: true,
			Run:    CreateTable,
		},
		{
			Name: StageUpdate,
			Requirements: func(cfg *config.Config) []preflight.Requirement {
				return []preflight.Requirement{
					{Name: "service directory", Path: cfg.Paths.ServiceDir, Access: preflight.Read},
					{Name: "table directory", Path: filepath.Dir(cfg.Paths.OutputTable), Access: preflight.Write},
				}
			},
			Locked: true,
			Run:    UpdateTable,
		},
		{
			Name: StageSites,
			Requirements: func(cfg *config.Config) []preflight.Requirement {
				return []preflight.Requirement{
					{Name: "service directory", Path: cfg.Paths.ServiceDir, Access: preflight.Read},
					{Name: "site table", Path: cfg.Paths.SiteTable, Access: preflight.File},
				}
			},
			Run: SiteStats,
		},
		{
			Name: StageMerge,
			Requirements: func(cfg *config.Config) []preflight.Requirement {
				return []preflight.Requirement{
					{Name: "data tables directory", Path: cfg.Paths.DataTablesDir, Access: preflight.Write},
				}
			},
			Run: MergeTables,
		},
	}
}

// Lookup returns the stage with the given name.
func Lookup(name string) (Stage, bool) {
	for _, stage := range Stages() {
		if stage.Name == name {
			return stage, true
		}
	}
	return Stage{}, false
}

// Runner executes stages with preflight checks, locking, logging and the
// run ledger.
type Runner struct {
	Config *config.Config
	Logger *slog.Logger
	// Ledger is optional; runs are not recorded when nil.
	Ledger *ledger.Store
	// RunID correlates log lines and the ledger entry of a single run. A
	// fresh id is assigned by the ledger when empty.
	RunID string
}

// Run executes stage. Site-scoped failures leave the run partial and are
// returned in the report; a returned error means the stage wrote nothing.
func (r *Runner) Run(ctx context.Context, stage Stage) (*Report, error) {
	if r.Config == nil {
		return nil, errors.New("runner requires a config")
	}
	if stage.Run == nil {
		return nil, fmt.Errorf("stage handler unavailable: %s", stage.Name)
	}

	runID := r.RunID
	var run *ledger.Run
	if r.Ledger != nil {
		var err error
		run, err = r.Ledger.Begin(ctx, runID, stage.Name, r.Config.Paths.ServiceDir)
		if err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
		runID = run.ID
	}

	stageCtx := logging.WithStage(logging.WithRunID(ctx, runID), stage.Name)
	logger := logging.WithContext(stageCtx, r.Logger)
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("service_dir", r.Config.Paths.ServiceDir),
	)
	started := time.Now()

	report, err := r.execute(stageCtx, stage, logger)
	r.finish(stageCtx, run, report, err, logger)
	if err != nil {
		attrs := append([]logging.Attr{
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.String("error_message", strings.TrimSpace(err.Error())),
		}, logging.Failure(err)...)
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
		return nil, err
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started).Round(time.Millisecond)),
		logging.Int("failed_sites", len(report.Failed)),
		logging.Int("skipped_files", report.Tally.Total()),
	}
	for _, key := range report.CountKeys() {
		attrs = append(attrs, logging.Int(key, report.Counts[key]))
	}
	logger.Info("stage completed", logging.Args(attrs...)...)
	return report, nil
}

func (r *Runner) execute(ctx context.Context, stage Stage, logger *slog.Logger) (*Report, error) {
	if stage.Requirements != nil {
		if err := preflight.Err(preflight.Run(stage.Requirements(r.Config))); err != nil {
			return nil, err
		}
	}
	if stage.Locked {
		lock, err := tablestore.AcquireLock(r.Config.LockPath())
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("table lock release failed",
					logging.String(logging.FieldEventType, "lock_release_failed"),
					logging.String(logging.FieldErrorHint, "remove the lock file if no trapsort process is running"),
					logging.String(logging.FieldImpact, "later stages may report the table as locked"),
					logging.Error(err),
				)
			}
		}()
	}

	env := NewEnv(r.Config, logger)
	report, err := stage.Run(ctx, env)
	if err != nil {
		return nil, err
	}
	report.Tally = env.Tally
	for _, name := range report.FailedNames() {
		attrs := append([]logging.Attr{
			logging.Site(name),
			logging.String(logging.FieldErrorHint, hintFor(report.Failed[name])),
			logging.String(logging.FieldImpact, "the site was left out of this run"),
		}, logging.Failure(report.Failed[name])...)
		logging.WarnWithContext(logger, "site failed", "site_failure", attrs...)
	}
	for kind, n := range env.Tally.Kinds() {
		logger.Info("files skipped",
			logging.String(logging.FieldEventType, "files_skipped"),
			logging.String("kind", kind),
			logging.Int("count", n),
		)
	}
	return report, nil
}

func (r *Runner) finish(ctx context.Context, run *ledger.Run, report *Report, runErr error, logger *slog.Logger) {
	if r.Ledger == nil || run == nil {
		return
	}
	var summary map[string]int
	failed := 0
	if report != nil {
		summary = report.Counts
		failed = len(report.Failed)
		for _, name := range report.FailedNames() {
			if err := r.Ledger.Record(ctx, run.ID, name, report.Failed[name]); err != nil {
				logger.Warn("record diagnostic failed", logging.Error(err))
			}
		}
	}
	if runErr != nil {
		if err := r.Ledger.Record(ctx, run.ID, "", runErr); err != nil {
			logger.Warn("record diagnostic failed", logging.Error(err))
		}
	}
	if err := r.Ledger.Finish(ctx, run, summary, failed, runErr); err != nil {
		logger.Warn("record run outcome failed",
			logging.String(logging.FieldEventType, "ledger_write_failed"),
			logging.String(logging.FieldErrorHint, "check the ledger path is writable"),
			logging.Error(err),
		)
	}
}

// hintFor suggests the next step for a failure by its class.
func hintFor(err error) string {
	switch {
	case errors.Is(err, tablestore.ErrLocked):
		return "wait for the other trapsort process to finish"
	case errors.Is(err, tablestore.ErrNoTable):
		return "run table create first"
	case errors.Is(err, fault.ErrConfiguration):
		return "check the config file and paths with trapsort config validate"
	case errors.Is(err, fault.ErrSchema):
		return "the table is missing required columns; regenerate it with table create"
	case errors.Is(err, fault.ErrPolicy):
		return "set pipeline.removal_policy to drop to delete rows"
	case errors.Is(err, fault.ErrIntegrity):
		return "fix the folder tree named in the diagnostic and rerun"
	default:
		return "see the log for details"
	}
}
