package scope

// Key is a typed name for a context field. Predicates and callers that agree
// on a Key get compile-time checked reads and writes over the otherwise
// dynamic context map. Two keys with the same name and type address the same
// field.
type Key[T any] struct {
	name string
}

// NewKey declares a typed key for the given field name.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the underlying field name.
func (k Key[T]) Name() string { return k.name }

// String implements fmt.Stringer.
func (k Key[T]) String() string { return k.name }

// Value reads k from v. The second return is false when the field is absent
// or bound to a value of a different dynamic type.
func Value[T any](v View, k Key[T]) (T, bool) {
	raw, ok := v.Get(k.name)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := raw.(T)
	return t, ok
}

// Put stores val under k in b.
func Put[T any](b Bindings, k Key[T], val T) {
	b[k.name] = val
}
