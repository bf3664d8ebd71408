package fault

import (
	"sort"
	"sync"
)

const defaultSampleLimit = 20

// FileFailure records one skipped unit of work.
type FileFailure struct {
	File string
	Err  error
}

// Tally counts per-file failures so a batch can finish and report them in
// aggregate. It is safe for concurrent use.
type Tally struct {
	mu      sync.Mutex
	total   int
	byKind  map[string]int
	samples []FileFailure
	limit   int
}

// NewTally returns a tally that keeps up to limit sample failures.
func NewTally(limit int) *Tally {
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	return &Tally{byKind: make(map[string]int), limit: limit}
}

// Record adds one failure under kind.
func (t *Tally) Record(kind, file string, err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.byKind[kind]++
	if len(t.samples) < t.limit {
		t.samples = append(t.samples, FileFailure{File: file, Err: err})
	}
}

// Total returns the number of failures recorded.
func (t *Tally) Total() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Kinds returns failure counts keyed by kind.
func (t *Tally) Kinds() map[string]int {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.byKind))
	for k, v := range t.byKind {
		out[k] = v
	}
	return out
}

// Samples returns the retained failures ordered by file name.
func (t *Tally) Samples() []FileFailure {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	out := make([]FileFailure, len(t.samples))
	copy(out, t.samples)
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}
