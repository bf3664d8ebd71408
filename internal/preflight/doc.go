// Package preflight provides readiness checks for the filesystem paths a
// pipeline stage depends on.
//
// The pipeline runner calls Run before a stage acquires the table lock. If
// any check fails the stage stops before touching the service tree, so a
// typo in a configured path never leaves a half-written table behind.
package preflight
