// Package pipeline wires the reconciliation components into the stages the
// CLI exposes.
//
// Stage functions (BreakoutSnips, CreateTable, UpdateTable, SiteStats,
// MergeTables) read the service tree and the table, run the pure components
// in order, and persist the result. They never decide how failures are
// reported; Runner wraps a stage with preflight checks, the table writer
// lock, run-scoped logging and the run ledger.
//
// Site-scoped failures are collected in Report.Failed while the remaining
// sites continue; anything else aborts the stage before the table is
// written.
package pipeline
