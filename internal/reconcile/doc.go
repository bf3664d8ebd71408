// Package reconcile brings a detection table into agreement with a
// human-sorted species folder tree.
//
// Reconcile is pure: it compares rows with a scanner.Snapshot and returns the
// mutations needed, and Apply produces a new table from them. Snip-level runs
// join on the snip file name and record corrections with provenance 1;
// image-level runs join on the base image file name, move every row of an
// image together, and record corrections with provenance 3. Rows whose file
// left the tree are flagged unless the drop policy is selected.
package reconcile
