package classmap

import "golang.org/x/text/cases"

// Set is a case-insensitive set of class or folder names.
type Set map[string]struct{}

func foldName(name string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(Canonical(name))
}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, name := range names {
		if folded := foldName(name); folded != "" {
			s[folded] = struct{}{}
		}
	}
	return s
}

// Has reports whether name is in the set, ignoring case.
func (s Set) Has(name string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[foldName(name)]
	return ok
}
