// Package assemble builds and merges detection tables.
//
// ImportAI turns every classifier mewc_out.csv in a service into one fresh
// table. Merge folds a site's rows into a running table without ever lowering
// a row's provenance, and MergeServices concatenates finished service tables
// for cross-service analysis.
package assemble
