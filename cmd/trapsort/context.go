package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trapsort/internal/config"
	"trapsort/internal/ledger"
	"trapsort/internal/logging"
	"trapsort/internal/pipeline"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	config  string
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) flagPath() string {
	if c.flags == nil {
		return ""
	}
	return strings.TrimSpace(c.flags.config)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.flagPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags != nil && c.flags.verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) withLedger(ctx context.Context, fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(ctx, cfg.Paths.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// runStage executes one pipeline stage with a run-scoped log file and a
// ledger entry, then prints the stage summary.
func (c *commandContext) runStage(cmd *cobra.Command, name string) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	stage, ok := pipeline.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown stage %q", name)
	}

	runID := uuid.NewString()
	logger, logPath, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: logging.RunLogPattern,
		Exclude: []string{logPath},
	})

	return c.withLedger(cmd.Context(), func(store *ledger.Store) error {
		runner := &pipeline.Runner{Config: cfg, Logger: logger, Ledger: store, RunID: runID}
		report, err := runner.Run(cmd.Context(), stage)
		if err != nil {
			return fmt.Errorf("%s failed (run %s): %w", name, shortID(runID), err)
		}
		printReport(cmd.OutOrStdout(), runID, report)
		return nil
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
