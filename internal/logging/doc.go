// Package logging assembles structured slog loggers and formatting helpers used
// across trapsort.
//
// It owns the configurable console/JSON handlers, routes output to stderr and
// a per-run log file, and exposes context-aware helpers so stage code tags
// log lines with the run id, stage, and camera site. The package also
// provides a no-op logger for tests, a progress sampler for per-file loops,
// and log retention pruning.
package logging
