// Package tablestore persists detection tables.
//
// A table lives next to its siblings under one base path: <base>.csv is the
// portable, human-readable copy and <base>.db is an exact-typed SQLite copy
// used between pipeline stages. Both round-trip every column. An .xlsx export
// is write-only. Writers hold an exclusive file lock for the duration of a
// stage so only one process mutates a table at a time.
package tablestore
