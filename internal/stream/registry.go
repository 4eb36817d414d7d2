// Package stream implements the stream registry, segment classifier,
// and per-stream generation-ring data model for the rotator engine.
package stream

import "strings"

// Registry is the fixed, ordered table of known streams. Matching a
// basename against the registry is by substring containment unless
// StrictPrefix is set, in which case a basename must begin with
// "<base>." to match; registry order is preserved as match priority in
// both modes.
type Registry struct {
	bases        []string
	strictPrefix bool
}

// NewRegistry builds a Registry from an ordered list of base names. The
// order given is preserved and used to break ties when a basename could
// be classified under more than one stream.
func NewRegistry(bases []string, strictPrefix bool) *Registry {
	cp := make([]string, len(bases))
	copy(cp, bases)
	return &Registry{bases: cp, strictPrefix: strictPrefix}
}

// Len returns the number of registered streams.
func (r *Registry) Len() int { return len(r.bases) }

// Base returns the base name for stream index id.
func (r *Registry) Base(id int) string { return r.bases[id] }

// Bases returns the full ordered list of base names.
func (r *Registry) Bases() []string {
	cp := make([]string, len(r.bases))
	copy(cp, r.bases)
	return cp
}

// match reports whether name should be classified under base, using
// whichever matching mode the registry was constructed with.
func (r *Registry) match(name, base string) bool {
	if r.strictPrefix {
		return strings.HasPrefix(name, base+".")
	}
	return strings.Contains(name, base)
}

// Find returns the index of the first registered base that matches
// name, and true if one was found.
func (r *Registry) Find(name string) (int, bool) {
	for i, base := range r.bases {
		if r.match(name, base) {
			return i, true
		}
	}
	return 0, false
}
