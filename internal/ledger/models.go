package ledger

import "time"

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusPartial marks a run that finished with some sites failed.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is one stage invocation.
type Run struct {
	ID           string
	Stage        string
	Status       Status
	ServiceDir   string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Summary      map[string]int
	ErrorMessage string
}

// Duration returns the run's wall time, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Diagnostic is a stored failure raised during a run.
type Diagnostic struct {
	RunID     string
	Scope     string
	Site      string
	File      string
	ClassID   *int
	Invariant string
	Message   string
}
