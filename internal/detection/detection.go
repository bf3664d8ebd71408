package detection

import (
	"sort"
	"strings"
	"time"
)

// UnknownAnimal is the class label the classifier emits for animals it could
// not place.
const UnknownAnimal = "unknown_animal"

// ProbNotScored marks a row whose class was set by a person rather than the
// classifier.
const ProbNotScored = -1.0

// Provenance records how a row's classification was last determined.
type Provenance int

const (
	ProvenanceAI             Provenance = 0
	ProvenanceSnipMove       Provenance = 1
	ProvenanceInferred       Provenance = 2
	ProvenanceImageMove      Provenance = 3
	ProvenanceNewRow         Provenance = 4
	ProvenanceInferredNewRow Provenance = 5
)

// Valid reports whether p is one of the known codes.
func (p Provenance) Valid() bool {
	return p >= ProvenanceAI && p <= ProvenanceInferredNewRow
}

// Raise returns the higher of p and next. Provenance never moves backwards.
func (p Provenance) Raise(next Provenance) Provenance {
	if next > p {
		return next
	}
	return p
}

func (p Provenance) String() string {
	switch p {
	case ProvenanceAI:
		return "ai"
	case ProvenanceSnipMove:
		return "snip_move"
	case ProvenanceInferred:
		return "inferred"
	case ProvenanceImageMove:
		return "image_move"
	case ProvenanceNewRow:
		return "new_row"
	case ProvenanceInferredNewRow:
		return "inferred_new_row"
	default:
		return "invalid"
	}
}

// FlashState is a tri-state flash flag.
type FlashState int8

const (
	FlashUnknown FlashState = iota
	FlashOff
	FlashOn
)

// FlashFromBool converts a known flag.
func FlashFromBool(fired bool) FlashState {
	if fired {
		return FlashOn
	}
	return FlashOff
}

// Known reports whether the state carries a value.
func (f FlashState) Known() bool {
	return f == FlashOff || f == FlashOn
}

// Flag is the reconciliation marker for a row.
type Flag string

const (
	FlagNone Flag = ""
	// FlagMissing marks a row whose file is no longer in the folder tree.
	FlagMissing Flag = "missing"
)

// Detection is one image-level classification.
type Detection struct {
	CameraSite    string
	Filename      string
	SnipName      string
	ClassID       int
	ClassName     string
	Prob          float64
	Conf          float64
	Count         int
	Timestamp     *time.Time
	Flash         FlashState
	ExpertUpdated Provenance
	EventID       int
	Flag          Flag
}

// Key identifies a detection within a service.
type Key struct {
	CameraSite string
	Filename   string
}

// Key returns the unique key for d.
func (d Detection) Key() Key {
	return Key{CameraSite: d.CameraSite, Filename: d.Filename}
}

// Scored reports whether Prob came from the classifier.
func (d Detection) Scored() bool {
	return d.Prob >= 0
}

// IsUnknown reports whether the row still carries the unknown_animal label.
func (d Detection) IsUnknown() bool {
	return d.ClassName == UnknownAnimal
}

// Clone returns a deep copy.
func (d Detection) Clone() Detection {
	if d.Timestamp != nil {
		ts := *d.Timestamp
		d.Timestamp = &ts
	}
	return d
}

// CloneAll deep copies a slice of rows.
func CloneAll(rows []Detection) []Detection {
	out := make([]Detection, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}

// BySite splits rows by camera site, preserving row order within each site.
func BySite(rows []Detection) map[string][]Detection {
	out := make(map[string][]Detection)
	for _, row := range rows {
		out[row.CameraSite] = append(out[row.CameraSite], row)
	}
	return out
}

// Sites returns the sorted distinct camera sites in rows.
func Sites(rows []Detection) []string {
	seen := make(map[string]struct{})
	var sites []string
	for _, row := range rows {
		if _, ok := seen[row.CameraSite]; ok {
			continue
		}
		seen[row.CameraSite] = struct{}{}
		sites = append(sites, row.CameraSite)
	}
	sort.Strings(sites)
	return sites
}

// SortBySiteTime orders rows by site, then timestamp (missing last), then
// filename. The sort is stable.
func SortBySiteTime(rows []Detection) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.CameraSite != b.CameraSite {
			return a.CameraSite < b.CameraSite
		}
		switch {
		case a.Timestamp == nil && b.Timestamp == nil:
		case a.Timestamp == nil:
			return false
		case b.Timestamp == nil:
			return true
		case !a.Timestamp.Equal(*b.Timestamp):
			return a.Timestamp.Before(*b.Timestamp)
		}
		return a.Filename < b.Filename
	})
}

// NormalizeSite trims a camera site identifier.
func NormalizeSite(site string) string {
	return strings.TrimSpace(site)
}

// Sourced tags a row with the service table it was merged from.
type Sourced struct {
	Source string
	Detection
}
