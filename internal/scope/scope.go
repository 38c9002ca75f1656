// Package scope implements the layered key/value context threaded through a
// permission-graph traversal. Each explored edge gets its own child layer:
// reads fall through to ancestor layers, writes stay local, so concurrent
// sibling branches can bind values without observing each other.
package scope

// Bindings is a set of named values produced by a predicate or seeded by a
// caller. A nil Bindings is valid and binds nothing.
type Bindings map[string]any

// View is the read-only face of a scope handed to edge predicates and
// restriction fills. Implementations must not expose mutation.
type View interface {
	// Get returns the value bound to key in this layer or the nearest
	// ancestor layer that binds it.
	Get(key string) (any, bool)
	// Has reports whether key is visible from this layer.
	Has(key string) bool
	// Snapshot flattens the visible bindings into a fresh map. Deeper
	// layers shadow ancestors for the same key.
	Snapshot() Bindings
}

// Scope is one layer of a context chain. The zero value is an empty root
// layer. A layer must not be written after children have been created from
// it; the traversal engine upholds this, which is what makes read-through
// safe without locking.
type Scope struct {
	parent *Scope
	values Bindings
}

// NewScope returns a root layer seeded with a copy of seed. The caller keeps
// ownership of seed; later mutations to it are not observed.
func NewScope(seed Bindings) *Scope {
	s := &Scope{}
	if len(seed) > 0 {
		s.values = make(Bindings, len(seed))
		for k, v := range seed {
			s.values[k] = v
		}
	}
	return s
}

// Child returns a fresh empty layer whose reads fall through to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s}
}

// Get returns the value bound to key in s or the nearest ancestor.
func (s *Scope) Get(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is visible from s.
func (s *Scope) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set binds key to val in this layer only. Ancestor layers are never
// modified; the old value, if any, is shadowed for this layer and its
// descendants.
func (s *Scope) Set(key string, val any) {
	if s.values == nil {
		s.values = make(Bindings)
	}
	s.values[key] = val
}

// Bind applies every entry of b to this layer via Set.
func (s *Scope) Bind(b Bindings) {
	for k, v := range b {
		s.Set(k, v)
	}
}

// Snapshot flattens the chain into a fresh map, applying layers root first
// so that deeper bindings win on key conflict.
func (s *Scope) Snapshot() Bindings {
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(Bindings)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].values {
			out[k] = v
		}
	}
	return out
}
