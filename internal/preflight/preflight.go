package preflight

import (
	"fmt"
	"strings"

	"trapsort/internal/fault"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Access is the kind of access a requirement needs.
type Access int

const (
	// Read needs an existing, listable directory.
	Read Access = iota
	// Write needs an existing directory the process can modify.
	Write
	// File needs an existing readable file.
	File
	// Creatable accepts a missing directory whose nearest existing ancestor
	// is writable; an existing one must be writable.
	Creatable
)

// Requirement names one path a stage relies on.
type Requirement struct {
	Name   string
	Path   string
	Access Access
	// Optional requirements are skipped when Path is empty.
	Optional bool
}

// Run evaluates every requirement in order.
func Run(reqs []Requirement) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		if req.Optional && strings.TrimSpace(req.Path) == "" {
			continue
		}
		results = append(results, Check(req))
	}
	return results
}

// Err folds failed results into a configuration error, or nil when every
// check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fault.Wrap(fault.ErrConfiguration, "preflight", "check paths", strings.Join(failed, "; "), nil)
}
