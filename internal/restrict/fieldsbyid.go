package restrict

import (
	"sort"
	"sync"
)

// FieldsByID accumulates allowed field names per record identifier, for
// grants of the shape "these fields of these records". Safe for concurrent
// use.
type FieldsByID struct {
	mu   sync.Mutex
	byID map[string]map[string]struct{}
}

// NewFieldsByID returns an empty accumulator: no record is visible yet.
func NewFieldsByID() *FieldsByID {
	return &FieldsByID{byID: make(map[string]map[string]struct{})}
}

// Allow grants fields on the record with the given id.
func (f *FieldsByID) Allow(id string, fields ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.byID[id]
	if !ok {
		set = make(map[string]struct{})
		f.byID[id] = set
	}
	for _, name := range fields {
		set[name] = struct{}{}
	}
}

// Allowed reports whether field has been granted on the record id.
func (f *FieldsByID) Allowed(id, field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.byID[id]
	if !ok {
		return false
	}
	_, ok = set[field]
	return ok
}

// IDs returns the record identifiers with at least one grant, sorted.
func (f *FieldsByID) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.byID))
	for id := range f.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FieldsFor returns the granted fields on a record, sorted. Unknown records
// yield an empty slice.
func (f *FieldsByID) FieldsFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.byID[id]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Report returns a sorted-field map keyed by record id for display and
// transport.
func (f *FieldsByID) Report() any {
	out := make(map[string][]string, len(f.byID))
	for _, id := range f.IDs() {
		out[id] = f.FieldsFor(id)
	}
	return out
}
