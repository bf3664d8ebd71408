package assemble

import (
	"sort"

	"trapsort/internal/detection"
)

// MergeStats counts how Merge treated incoming rows.
type MergeStats struct {
	Added    int
	Replaced int
	// Kept counts incoming rows rejected because the existing row carries a
	// higher provenance.
	Kept int
}

// Merge folds site rows into a running table keyed by camera site and
// filename. An incoming row replaces an existing one only when its
// provenance is not lower. Existing rows keep their position; new keys are
// appended in input order. Neither input is modified.
func Merge(into, site []detection.Detection) ([]detection.Detection, MergeStats) {
	out := detection.CloneAll(into)
	index := make(map[detection.Key]int, len(out))
	for i, row := range out {
		index[row.Key()] = i
	}
	var stats MergeStats
	for _, row := range site {
		key := row.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, row.Clone())
			stats.Added++
			continue
		}
		if row.ExpertUpdated < out[i].ExpertUpdated {
			stats.Kept++
			continue
		}
		out[i] = row.Clone()
		stats.Replaced++
	}
	return out, stats
}

// ServiceTable is one finished service table and its label.
type ServiceTable struct {
	Source string
	Rows   []detection.Detection
}

// MergeServices concatenates service tables, labels every row with its
// source, and orders the result by camera site then timestamp with missing
// timestamps last. Ties keep input order.
func MergeServices(tables []ServiceTable) []detection.Sourced {
	var out []detection.Sourced
	for _, table := range tables {
		for _, row := range table.Rows {
			out = append(out, detection.Sourced{Source: table.Source, Detection: row.Clone()})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CameraSite != b.CameraSite {
			return a.CameraSite < b.CameraSite
		}
		switch {
		case a.Timestamp == nil:
			return false
		case b.Timestamp == nil:
			return true
		}
		return a.Timestamp.Before(*b.Timestamp)
	})
	return out
}
