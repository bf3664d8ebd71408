package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"trapsort/internal/fault"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// IsImage reports whether name has an image extension.
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Entry locates one image in a species folder tree.
type Entry struct {
	Species string
	Path    string
}

// Snapshot is a point-in-time view of a species folder tree, keyed by file
// name.
type Snapshot struct {
	Root    string
	Files   map[string]Entry
	Species []string
	// Loose lists images sitting directly under Root, outside any species
	// folder.
	Loose []string
}

// Lookup returns the entry for name.
func (s Snapshot) Lookup(name string) (Entry, bool) {
	e, ok := s.Files[norm.NFC.String(name)]
	return e, ok
}

// Len returns the number of images in species folders.
func (s Snapshot) Len() int {
	return len(s.Files)
}

// Names returns the sorted file names in the snapshot.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConflictError lists file names found in more than one species folder.
type ConflictError struct {
	Root  string
	Names map[string][]string
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Names))
	for name := range e.Names {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s in [%s]", name, strings.Join(e.Names[name], ", ")))
	}
	return fmt.Sprintf("%s: %d file(s) in multiple species folders under %s: %s",
		fault.ErrIntegrity, len(names), e.Root, strings.Join(parts, "; "))
}

func (e *ConflictError) Unwrap() error {
	return fault.ErrIntegrity
}

// Scan reads the species folders directly under root. Each image belongs to
// the folder it sits in; sub-folders of a species folder are not read.
func Scan(root string) (Snapshot, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Snapshot{}, fault.Wrap(fault.ErrIntegrity, "scan", "read root", root, err)
	}
	snap := Snapshot{Root: root, Files: make(map[string]Entry)}
	seen := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			if IsImage(entry.Name()) {
				snap.Loose = append(snap.Loose, entry.Name())
			}
			continue
		}
		species := norm.NFC.String(entry.Name())
		speciesDir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(speciesDir)
		if err != nil {
			return Snapshot{}, fault.Wrap(fault.ErrIntegrity, "scan", "read species folder", speciesDir, err)
		}
		snap.Species = append(snap.Species, species)
		for _, file := range files {
			if file.IsDir() || !IsImage(file.Name()) {
				continue
			}
			name := norm.NFC.String(file.Name())
			seen[name] = append(seen[name], species)
			snap.Files[name] = Entry{Species: species, Path: filepath.Join(speciesDir, file.Name())}
		}
	}
	conflicts := make(map[string][]string)
	for name, species := range seen {
		if len(species) > 1 {
			sort.Strings(species)
			conflicts[name] = species
		}
	}
	if len(conflicts) > 0 {
		return Snapshot{}, &ConflictError{Root: root, Names: conflicts}
	}
	sort.Strings(snap.Species)
	sort.Strings(snap.Loose)
	return snap, nil
}

// BaseFilename strips the "-N" snip suffix: "I__00001-0.JPG" becomes
// "I__00001.JPG".
func BaseFilename(name string) string {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name
	}
	stem, ext := name[:dot], name[dot:]
	dash := strings.LastIndex(stem, "-")
	if dash < 0 {
		return name
	}
	return stem[:dash] + ext
}
