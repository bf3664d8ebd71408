// Package ledger records pipeline runs and their diagnostics in SQLite.
//
// Every stage invocation gets a run row keyed by a UUID that also tags the
// run's log lines. Integrity diagnostics raised while processing sites are
// stored against the run so `trapsort runs` can show what needs fixing
// without trawling log files.
//
// Schema changes bump schemaVersion; users delete the ledger file to adopt
// the new schema.
package ledger
