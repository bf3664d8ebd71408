package fault

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrIntegrity     = errors.New("input integrity error")
	ErrMetadata      = errors.New("metadata error")
	ErrSchema        = errors.New("schema error")
	ErrPolicy        = errors.New("policy violation")
	ErrConfiguration = errors.New("configuration error")
)

// Scope describes how far a failure propagates.
type Scope int

const (
	// ScopeFile failures are tallied and skipped.
	ScopeFile Scope = iota
	// ScopeSite failures abort one camera site.
	ScopeSite
	// ScopeRun failures abort the whole run.
	ScopeRun
)

func (s Scope) String() string {
	switch s {
	case ScopeFile:
		return "file"
	case ScopeSite:
		return "site"
	default:
		return "run"
	}
}

// ScopeOf classifies err by its marker. Unmarked errors abort the run.
func ScopeOf(err error) Scope {
	switch {
	case err == nil:
		return ScopeFile
	case errors.Is(err, ErrMetadata):
		return ScopeFile
	case errors.Is(err, ErrIntegrity), errors.Is(err, ErrPolicy):
		return ScopeSite
	default:
		return ScopeRun
	}
}

// Wrap builds an error message that includes stage context while tagging it
// with marker for later classification.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIntegrity
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Diagnostic is a structured, human-fixable failure. It names the site, file
// or class id, and the invariant that was violated.
type Diagnostic struct {
	Marker    error
	Site      string
	File      string
	ClassID   *int
	Invariant string
	Message   string
	Err       error
}

// Integrity builds an integrity diagnostic for site.
func Integrity(site, invariant, message string) *Diagnostic {
	return &Diagnostic{Marker: ErrIntegrity, Site: site, Invariant: invariant, Message: message}
}

// WithFile sets the offending file name.
func (d *Diagnostic) WithFile(name string) *Diagnostic {
	d.File = name
	return d
}

// WithClassID sets the offending class id.
func (d *Diagnostic) WithClassID(id int) *Diagnostic {
	d.ClassID = &id
	return d
}

// WithCause attaches an underlying error.
func (d *Diagnostic) WithCause(err error) *Diagnostic {
	d.Err = err
	return d
}

func (d *Diagnostic) Error() string {
	marker := d.Marker
	if marker == nil {
		marker = ErrIntegrity
	}
	var b strings.Builder
	b.WriteString(marker.Error())
	if d.Site != "" {
		b.WriteString(": site=")
		b.WriteString(d.Site)
	}
	if d.File != "" {
		b.WriteString(" file=")
		b.WriteString(d.File)
	}
	if d.ClassID != nil {
		b.WriteString(" class_id=")
		b.WriteString(strconv.Itoa(*d.ClassID))
	}
	if d.Invariant != "" {
		b.WriteString(" invariant=")
		b.WriteString(d.Invariant)
	}
	if msg := strings.TrimSpace(d.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if d.Err != nil {
		b.WriteString(": ")
		b.WriteString(d.Err.Error())
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() []error {
	errs := make([]error, 0, 2)
	if d.Marker != nil {
		errs = append(errs, d.Marker)
	} else {
		errs = append(errs, ErrIntegrity)
	}
	if d.Err != nil {
		errs = append(errs, d.Err)
	}
	return errs
}

// Details extracts the diagnostic from err when present.
func Details(err error) (*Diagnostic, bool) {
	var diag *Diagnostic
	if errors.As(err, &diag) {
		return diag, true
	}
	return nil, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
