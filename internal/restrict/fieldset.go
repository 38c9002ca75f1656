package restrict

import (
	"sort"
	"sync"
)

// FieldSet accumulates a flat set of allowed field names. Safe for
// concurrent use.
type FieldSet struct {
	mu     sync.Mutex
	fields map[string]struct{}
}

// NewFieldSet returns an empty field set: no field is allowed yet.
func NewFieldSet() *FieldSet {
	return &FieldSet{fields: make(map[string]struct{})}
}

// Allow adds fields to the allowed set. Duplicates are no-ops.
func (f *FieldSet) Allow(fields ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range fields {
		f.fields[name] = struct{}{}
	}
}

// Allowed reports whether field has been granted.
func (f *FieldSet) Allowed(field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fields[field]
	return ok
}

// Fields returns the allowed field names, sorted.
func (f *FieldSet) Fields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.fields))
	for name := range f.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of allowed fields.
func (f *FieldSet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fields)
}

// Report returns the sorted field names for display and transport.
func (f *FieldSet) Report() any {
	return f.Fields()
}
