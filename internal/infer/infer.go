package infer

import (
	"sort"

	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/events"
)

// Options configures a resolver run.
type Options struct {
	// Threshold is the minimum mean AI probability of the dominant class.
	Threshold float64
	// ClassMap resolves the id of the dominant class. When nil, or when the
	// class is absent, the id of a dominant row is used.
	ClassMap *classmap.Map
	// NonAnimal names classes that never count as context.
	NonAnimal classmap.Set
}

// Outcome records what happened to one event's unknown rows.
type Outcome string

const (
	OutcomeInferred       Outcome = "inferred"
	OutcomeTie            Outcome = "tie"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeNoContext      Outcome = "no_context"
)

// Summary counts resolver decisions across events that held unknown rows.
type Summary struct {
	Events   map[Outcome]int
	Relabels int
}

type classStats struct {
	name    string
	id      int
	rows    int
	scored  int
	sumProb float64
	maxProb float64
}

func (c *classStats) mean() float64 {
	if c.scored == 0 {
		// Human-verified only.
		return 1.0
	}
	return c.sumProb / float64(c.scored)
}

// Resolve returns a copy of rows in which every eligible unknown_animal row
// carries the dominant class of its (camera_site, event). The input is not
// modified. Rows are grouped by their existing EventID; call events.Assign
// first.
func Resolve(rows []detection.Detection, opts Options) ([]detection.Detection, Summary) {
	out := detection.CloneAll(rows)
	summary := Summary{Events: make(map[Outcome]int)}
	keys, members := events.Group(out)
	for _, key := range keys {
		idx := members[key]
		var unknown []int
		for _, i := range idx {
			if eligible(out[i]) {
				unknown = append(unknown, i)
			}
		}
		if len(unknown) == 0 {
			continue
		}
		dominant, outcome := dominantClass(out, idx, opts)
		summary.Events[outcome]++
		if outcome != OutcomeInferred {
			continue
		}
		for _, i := range unknown {
			relabel(&out[i], dominant)
			summary.Relabels++
		}
	}
	return out, summary
}

// eligible reports whether row is an unknown animal the resolver may change.
// A person sorting the full image into unknown_animal is an explicit
// decision and is left alone.
func eligible(row detection.Detection) bool {
	return row.IsUnknown() && row.ExpertUpdated != detection.ProvenanceImageMove
}

func dominantClass(rows []detection.Detection, idx []int, opts Options) (*classStats, Outcome) {
	byName := make(map[string]*classStats)
	for _, i := range idx {
		row := rows[i]
		if row.IsUnknown() || opts.NonAnimal.Has(row.ClassName) {
			continue
		}
		name := classmap.Canonical(row.ClassName)
		stats, ok := byName[name]
		if !ok {
			stats = &classStats{name: name, id: row.ClassID, maxProb: detection.ProbNotScored}
			byName[name] = stats
		}
		stats.rows++
		if row.Scored() {
			stats.scored++
			stats.sumProb += row.Prob
		}
		if row.Prob > stats.maxProb {
			stats.maxProb = row.Prob
		}
	}
	if len(byName) == 0 {
		return nil, OutcomeNoContext
	}

	ranked := make([]*classStats, 0, len(byName))
	for _, stats := range byName {
		ranked = append(ranked, stats)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].rows != ranked[j].rows {
			return ranked[i].rows > ranked[j].rows
		}
		return ranked[i].name < ranked[j].name
	})
	top := ranked[0]
	if len(ranked) > 1 && ranked[1].rows == top.rows {
		return nil, OutcomeTie
	}
	if top.mean() < opts.Threshold {
		return nil, OutcomeBelowThreshold
	}
	if id, ok := opts.ClassMap.ID(top.name); ok {
		top.id = id
	}
	return top, OutcomeInferred
}

func relabel(row *detection.Detection, dominant *classStats) {
	row.ClassName = dominant.name
	row.ClassID = dominant.id
	row.Prob = dominant.maxProb
	if row.ExpertUpdated == detection.ProvenanceNewRow {
		row.ExpertUpdated = detection.ProvenanceInferredNewRow
		return
	}
	row.ExpertUpdated = row.ExpertUpdated.Raise(detection.ProvenanceInferred)
}
