package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trapsort/internal/fault"
)

// Site is one camera-site folder within a service.
type Site struct {
	Name string
	Dir  string
}

// FindSites walks serviceDir and returns the parent folder of every entry
// named marker (case-insensitive). Marker directories are not descended
// into. Directories listed in skip are pruned. Camera-site folder names must
// be unique across the service.
func FindSites(serviceDir, marker string, skip ...string) ([]Site, error) {
	pruned := make(map[string]struct{}, len(skip))
	for _, dir := range skip {
		if dir = strings.TrimSpace(dir); dir != "" {
			pruned[filepath.Clean(dir)] = struct{}{}
		}
	}
	var sites []Site
	byName := make(map[string][]string)
	err := filepath.WalkDir(serviceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, ok := pruned[filepath.Clean(path)]; ok {
				return filepath.SkipDir
			}
		}
		if path == serviceDir || !strings.EqualFold(d.Name(), marker) {
			return nil
		}
		parent := filepath.Dir(path)
		name := filepath.Base(parent)
		sites = append(sites, Site{Name: name, Dir: parent})
		byName[name] = append(byName[name], parent)
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.ErrIntegrity, "scan", "find sites", serviceDir, err)
	}
	for name, dirs := range byName {
		if len(dirs) > 1 {
			sort.Strings(dirs)
			return nil, fault.Integrity(name, "unique-site-folder",
				"camera-site folder names must be unique; found in "+strings.Join(dirs, ", "))
		}
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// CheckFlat verifies a sorted snip breakout tree. A species folder whose
// sub-folder still holds files means sorting is unfinished and is an error.
// Empty sub-folders and empty species folders are removed; their paths are
// returned.
func CheckFlat(root string) ([]string, error) {
	species, err := os.ReadDir(root)
	if err != nil {
		return nil, fault.Wrap(fault.ErrIntegrity, "scan", "read breakout", root, err)
	}
	var removed []string
	for _, sp := range species {
		if !sp.IsDir() {
			continue
		}
		speciesDir := filepath.Join(root, sp.Name())
		children, err := os.ReadDir(speciesDir)
		if err != nil {
			return removed, fault.Wrap(fault.ErrIntegrity, "scan", "read species folder", speciesDir, err)
		}
		remaining := 0
		for _, child := range children {
			if !child.IsDir() {
				remaining++
				continue
			}
			subDir := filepath.Join(speciesDir, child.Name())
			held, err := holdsFiles(subDir)
			if err != nil {
				return removed, fault.Wrap(fault.ErrIntegrity, "scan", "read sub-folder", subDir, err)
			}
			if held {
				return removed, fault.Integrity("", "flat-breakout",
					"sub-folder "+filepath.Join(sp.Name(), child.Name())+" has not been sorted into its species folder")
			}
			if err := os.RemoveAll(subDir); err != nil {
				return removed, fault.Wrap(fault.ErrIntegrity, "scan", "remove empty sub-folder", subDir, err)
			}
			removed = append(removed, subDir)
		}
		if remaining == 0 {
			if err := os.RemoveAll(speciesDir); err != nil {
				return removed, fault.Wrap(fault.ErrIntegrity, "scan", "remove empty species folder", speciesDir, err)
			}
			removed = append(removed, speciesDir)
		}
	}
	return removed, nil
}

func holdsFiles(dir string) (bool, error) {
	found := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}
