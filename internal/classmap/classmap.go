package classmap

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

// Entry is one class id and name pair.
type Entry struct {
	ID   int
	Name string
}

// Map is an immutable bijection between class ids and class names.
type Map struct {
	byID   map[int]string
	byName map[string]int
}

// Canonical returns the comparison form of a class or folder name: trimmed
// and NFC normalised so trees written on macOS and Linux agree.
func Canonical(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// New builds a map from entries. Duplicate ids or names are rejected.
func New(entries []Entry) (*Map, error) {
	m := &Map{
		byID:   make(map[int]string, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		name := Canonical(e.Name)
		if name == "" {
			return nil, fault.Wrap(fault.ErrSchema, "class map", "build", fmt.Sprintf("class id %d has an empty name", e.ID), nil)
		}
		if prev, ok := m.byID[e.ID]; ok && prev != name {
			return nil, fault.Wrap(fault.ErrSchema, "class map", "build",
				fmt.Sprintf("class id %d maps to both %q and %q", e.ID, prev, name), nil)
		}
		if prev, ok := m.byName[name]; ok && prev != e.ID {
			return nil, fault.Wrap(fault.ErrSchema, "class map", "build",
				fmt.Sprintf("class %q maps to both id %d and id %d", name, prev, e.ID), nil)
		}
		m.byID[e.ID] = name
		m.byName[name] = e.ID
	}
	return m, nil
}

// Load reads a MEWC class_map.yaml. Both "name: id" and "id: name" layouts
// are accepted.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.ErrConfiguration, "class map", "read", path, err)
	}
	return Parse(data)
}

// Parse decodes class map YAML.
func Parse(data []byte) (*Map, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fault.Wrap(fault.ErrSchema, "class map", "parse yaml", "", err)
	}
	if len(raw) == 0 {
		return nil, fault.Wrap(fault.ErrSchema, "class map", "parse yaml", "no classes defined", nil)
	}
	entries := make([]Entry, 0, len(raw))
	for key, value := range raw {
		entry, err := parseEntry(key, value)
		if err != nil {
			return nil, fault.Wrap(fault.ErrSchema, "class map", "parse yaml", key, err)
		}
		entries = append(entries, entry)
	}
	return New(entries)
}

func parseEntry(key string, value any) (Entry, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(key)); err == nil {
		name, ok := value.(string)
		if !ok {
			return Entry{}, fmt.Errorf("expected class name, got %T", value)
		}
		return Entry{ID: id, Name: name}, nil
	}
	switch v := value.(type) {
	case int:
		return Entry{ID: v, Name: key}, nil
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Entry{}, fmt.Errorf("class id %q is not an integer", v)
		}
		return Entry{ID: id, Name: key}, nil
	default:
		return Entry{}, fmt.Errorf("expected class id, got %T", value)
	}
}

// FromDetections derives the map from the pairs present in an AI table.
func FromDetections(rows []detection.Detection) (*Map, error) {
	seen := make(map[Entry]struct{})
	entries := make([]Entry, 0)
	for _, row := range rows {
		e := Entry{ID: row.ClassID, Name: row.ClassName}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, fault.Wrap(fault.ErrSchema, "class map", "derive", "table has no rows", nil)
	}
	return New(entries)
}

// Name returns the class name for id.
func (m *Map) Name(id int) (string, bool) {
	if m == nil {
		return "", false
	}
	name, ok := m.byID[id]
	return name, ok
}

// ID returns the class id for name.
func (m *Map) ID(name string) (int, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.byName[Canonical(name)]
	return id, ok
}

// Len returns the number of classes.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byID)
}

// Entries returns all classes ordered by id.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(m.byID))
	for id, name := range m.byID {
		out = append(out, Entry{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Merge returns a map holding the classes of both maps. Conflicting pairs
// are an error.
func (m *Map) Merge(other *Map) (*Map, error) {
	entries := append(m.Entries(), other.Entries()...)
	merged, err := New(entries)
	if err != nil {
		return nil, errors.Join(fault.ErrIntegrity, err)
	}
	return merged, nil
}

// Check verifies that every row's class id and name agree with the map.
func (m *Map) Check(rows []detection.Detection) error {
	for _, row := range rows {
		name, ok := m.Name(row.ClassID)
		if !ok {
			return fault.Integrity(row.CameraSite, "class-map", "class id not in class map").
				WithFile(row.Filename).WithClassID(row.ClassID)
		}
		if name != Canonical(row.ClassName) {
			return fault.Integrity(row.CameraSite, "class-map",
				fmt.Sprintf("class name %q does not match %q", row.ClassName, name)).
				WithFile(row.Filename).WithClassID(row.ClassID)
		}
	}
	return nil
}
