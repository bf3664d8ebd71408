// Package scanner reads the human-maintained species folder trees.
//
// Scan produces a stateless snapshot mapping each image file name to the
// species folder holding it and fails with a ConflictError when a name
// appears under more than one species. FindSites and CheckFlat cover the
// service-level layout checks that run before reconciliation.
package scanner
