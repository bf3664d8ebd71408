package reconcile

import (
	"fmt"
	"sort"

	"trapsort/internal/classmap"
	"trapsort/internal/detection"
	"trapsort/internal/fault"
	"trapsort/internal/scanner"
)

// Level selects the folder tree being reconciled.
type Level int

const (
	// LevelSnip reconciles the service-wide snip breakout tree.
	LevelSnip Level = iota
	// LevelImage reconciles one site's animal tree.
	LevelImage
)

func (l Level) String() string {
	if l == LevelImage {
		return "image"
	}
	return "snip"
}

// Provenance returns the code recorded for a human correction at l.
func (l Level) Provenance() detection.Provenance {
	if l == LevelImage {
		return detection.ProvenanceImageMove
	}
	return detection.ProvenanceSnipMove
}

// Removal is the policy for rows whose file is no longer in the tree.
type Removal string

const (
	RemovalFlag Removal = "flag"
	RemovalDrop Removal = "drop"
)

// Options configures one reconciliation.
type Options struct {
	Level    Level
	Removal  Removal
	ClassMap *classmap.Map
	// Ignore names folders whose files never become new rows.
	Ignore classmap.Set
	// Site limits an image-level run to one camera site and names the site
	// of added rows. Snip-level runs cover every site when empty.
	Site string
}

// Kind classifies a mutation.
type Kind string

const (
	KindMoved    Kind = "moved"
	KindAdded    Kind = "added"
	KindMissing  Kind = "missing"
	KindDropped  Kind = "dropped"
	KindRestored Kind = "restored"
)

// Mutation is one row change. Row holds the resulting row; for dropped rows
// it is the row being removed.
type Mutation struct {
	Kind Kind
	Key  detection.Key
	From string
	To   string
	// Path locates the file in the tree for added rows so capture metadata
	// can be back-filled.
	Path string
	Row  detection.Detection
}

// Result is the outcome of Reconcile.
type Result struct {
	Level     Level
	Removal   Removal
	Mutations []Mutation
	// Orphans lists tree files that match no row and cannot become rows:
	// snips whose site is unknown, or images in folders that are ignored.
	Orphans []string
}

// Counts tallies mutations by kind.
func (r Result) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, m := range r.Mutations {
		out[m.Kind]++
	}
	return out
}

// Empty reports whether the result changes nothing.
func (r Result) Empty() bool {
	return len(r.Mutations) == 0
}

// joinKey returns the tree file name a row is expected under, or "" when the
// row does not take part at this level.
func joinKey(row detection.Detection, level Level) string {
	if level == LevelSnip {
		return row.SnipName
	}
	switch row.ExpertUpdated {
	case detection.ProvenanceNewRow, detection.ProvenanceInferredNewRow:
		// Rows created from the tree are keyed by their own file name.
		return row.Filename
	}
	return scanner.BaseFilename(row.Filename)
}

// Reconcile compares rows with snap and returns the mutations that bring the
// table into agreement with the tree. rows is not modified.
func Reconcile(rows []detection.Detection, snap scanner.Snapshot, opts Options) (Result, error) {
	if opts.Removal == "" {
		opts.Removal = RemovalFlag
	}
	if opts.Removal != RemovalFlag && opts.Removal != RemovalDrop {
		return Result{}, fault.Wrap(fault.ErrPolicy, "reconcile", "options",
			fmt.Sprintf("unknown removal policy %q", opts.Removal), nil)
	}
	if opts.Level == LevelImage && opts.Site == "" {
		return Result{}, fault.Wrap(fault.ErrPolicy, "reconcile", "options", "image level needs a camera site", nil)
	}
	if err := checkSpecies(snap, opts); err != nil {
		return Result{}, err
	}

	res := Result{Level: opts.Level, Removal: opts.Removal}
	matched := make(map[string]struct{})
	filenames := make(map[string]struct{})
	for _, row := range rows {
		if opts.Site != "" && row.CameraSite != opts.Site {
			continue
		}
		filenames[row.Filename] = struct{}{}
		key := joinKey(row, opts.Level)
		if key == "" {
			continue
		}
		entry, ok := snap.Lookup(key)
		if ok && opts.Ignore.Has(entry.Species) {
			if _, known := opts.ClassMap.ID(entry.Species); !known {
				// Sorted out of the tracked classes entirely.
				ok = false
			}
		}
		if !ok {
			if m, changed := missing(row, opts.Removal); changed {
				res.Mutations = append(res.Mutations, m)
			}
			continue
		}
		matched[classmap.Canonical(key)] = struct{}{}
		if m, changed := compare(row, entry, opts); changed {
			res.Mutations = append(res.Mutations, m)
		}
	}

	for _, name := range snap.Names() {
		if _, ok := matched[name]; ok {
			continue
		}
		entry := snap.Files[name]
		if opts.Level == LevelSnip || opts.Ignore.Has(entry.Species) {
			res.Orphans = append(res.Orphans, name)
			continue
		}
		if _, clash := filenames[name]; clash {
			return Result{}, fault.Integrity(opts.Site, "unique-key",
				"image in the tree matches no row but its name is already used by another row").WithFile(name)
		}
		res.Mutations = append(res.Mutations, added(name, entry, opts))
	}
	return res, nil
}

// checkSpecies rejects images sorted into folders the class map does not
// know. Ignored folders are exempt.
func checkSpecies(snap scanner.Snapshot, opts Options) error {
	if opts.ClassMap == nil {
		return fault.Wrap(fault.ErrIntegrity, "reconcile", "options", "class map is required", nil)
	}
	unknown := make(map[string]string)
	for _, name := range snap.Names() {
		species := snap.Files[name].Species
		if opts.Ignore.Has(species) {
			continue
		}
		if _, ok := opts.ClassMap.ID(species); ok {
			continue
		}
		if _, seen := unknown[species]; !seen {
			unknown[species] = name
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	names := make([]string, 0, len(unknown))
	for species := range unknown {
		names = append(names, species)
	}
	sort.Strings(names)
	return fault.Integrity(opts.Site, "known-species",
		fmt.Sprintf("species folder %q is not in the class map; rename it or add the class", names[0])).
		WithFile(unknown[names[0]])
}

func compare(row detection.Detection, entry scanner.Entry, opts Options) (Mutation, bool) {
	species := classmap.Canonical(entry.Species)
	current := classmap.Canonical(row.ClassName)
	next := row.Clone()
	wasMissing := row.Flag == detection.FlagMissing
	next.Flag = detection.FlagNone
	if species == current {
		if !wasMissing {
			return Mutation{}, false
		}
		return Mutation{Kind: KindRestored, Key: row.Key(), From: current, To: species, Row: next}, true
	}
	id, _ := opts.ClassMap.ID(species)
	next.ClassName = species
	next.ClassID = id
	next.Prob = detection.ProbNotScored
	next.ExpertUpdated = row.ExpertUpdated.Raise(opts.Level.Provenance())
	return Mutation{Kind: KindMoved, Key: row.Key(), From: current, To: species, Row: next}, true
}

func missing(row detection.Detection, removal Removal) (Mutation, bool) {
	if removal == RemovalDrop {
		return Mutation{Kind: KindDropped, Key: row.Key(), From: row.ClassName, Row: row.Clone()}, true
	}
	if row.Flag == detection.FlagMissing {
		return Mutation{}, false
	}
	next := row.Clone()
	next.Flag = detection.FlagMissing
	return Mutation{Kind: KindMissing, Key: row.Key(), From: row.ClassName, Row: next}, true
}

func added(name string, entry scanner.Entry, opts Options) Mutation {
	species := classmap.Canonical(entry.Species)
	id, _ := opts.ClassMap.ID(species)
	row := detection.Detection{
		CameraSite:    opts.Site,
		Filename:      name,
		ClassID:       id,
		ClassName:     species,
		Prob:          detection.ProbNotScored,
		Count:         1,
		ExpertUpdated: detection.ProvenanceNewRow,
	}
	return Mutation{Kind: KindAdded, Key: row.Key(), To: species, Path: entry.Path, Row: row}
}
