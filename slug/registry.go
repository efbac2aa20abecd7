package slug

import "strconv"

// Registry tracks the ids emitted while processing one document.
// Create one per document and discard it afterwards; it is not safe for
// concurrent use.
type Registry struct {
	used map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{used: make(map[string]struct{})}
}

// Reserve marks id as taken without altering it.
func (r *Registry) Reserve(id string) {
	r.used[id] = struct{}{}
}

// Has reports whether id was already emitted or reserved.
func (r *Registry) Has(id string) bool {
	_, ok := r.used[id]
	return ok
}

// Unique returns base, or base-1, base-2, ... whichever is free first,
// and reserves it.
func (r *Registry) Unique(base string) string {
	id := base
	for n := 1; r.Has(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	r.Reserve(id)
	return id
}
