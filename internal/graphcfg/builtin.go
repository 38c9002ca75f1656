package graphcfg

import (
	"context"
	"fmt"
	"reflect"

	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
)

// Builtins returns a registry pre-loaded with the generic predicates, fills
// and accumulator kinds that make graph files usable without any Go code.
// Domain predicates (password checks, database lookups) are the embedder's
// business; these builtins only inspect the context document itself.
func Builtins() *Registry {
	r := NewRegistry()

	r.RegisterPredicate("always", func(params map[string]any) (graph.Predicate, error) {
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			return true, nil, nil
		}, nil
	})

	r.RegisterPredicate("never", func(params map[string]any) (graph.Predicate, error) {
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			return false, nil, nil
		}, nil
	})

	r.RegisterPredicate("key_present", func(params map[string]any) (graph.Predicate, error) {
		key, err := stringParam(params, "key")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			return v.Has(key), nil, nil
		}, nil
	})

	r.RegisterPredicate("key_equals", func(params map[string]any) (graph.Predicate, error) {
		key, err := stringParam(params, "key")
		if err != nil {
			return nil, err
		}
		want, ok := params["equals"]
		if !ok {
			return nil, fmt.Errorf("missing param %q", "equals")
		}
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			got, ok := v.Get(key)
			return ok && looseEqual(got, want), nil, nil
		}, nil
	})

	r.RegisterPredicate("key_in", func(params map[string]any) (graph.Predicate, error) {
		key, err := stringParam(params, "key")
		if err != nil {
			return nil, err
		}
		values, err := anySliceParam(params, "values")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			got, ok := v.Get(key)
			if !ok {
				return false, nil, nil
			}
			for _, want := range values {
				if looseEqual(got, want) {
					return true, nil, nil
				}
			}
			return false, nil, nil
		}, nil
	})

	r.RegisterPredicate("key_truthy", func(params map[string]any) (graph.Predicate, error) {
		key, err := stringParam(params, "key")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			got, _ := v.Get(key)
			b, ok := got.(bool)
			return ok && b, nil, nil
		}, nil
	})

	r.RegisterPredicate("bind", func(params map[string]any) (graph.Predicate, error) {
		bindings, err := mapParam(params, "bindings")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			return true, scope.Bindings(bindings), nil
		}, nil
	})

	r.RegisterFill("allow_fields", func(params map[string]any) (restrict.FillFunc, error) {
		fields, err := stringSliceParam(params, "fields")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
			if fs, ok := acc.(*restrict.FieldSet); ok {
				fs.Allow(fields...)
			}
		}, nil
	})

	r.RegisterFill("allow_fields_from_context", func(params map[string]any) (restrict.FillFunc, error) {
		key, err := stringParam(params, "key")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
			fs, ok := acc.(*restrict.FieldSet)
			if !ok {
				return
			}
			raw, ok := v.Get(key)
			if !ok {
				return
			}
			fs.Allow(toStrings(raw)...)
		}, nil
	})

	r.RegisterFill("allow_record_fields", func(params map[string]any) (restrict.FillFunc, error) {
		idKey, err := stringParam(params, "id_key")
		if err != nil {
			return nil, err
		}
		fields, err := stringSliceParam(params, "fields")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
			fb, ok := acc.(*restrict.FieldsByID)
			if !ok {
				return
			}
			raw, ok := v.Get(idKey)
			if !ok {
				return
			}
			if id, ok := raw.(string); ok {
				fb.Allow(id, fields...)
			}
		}, nil
	})

	r.RegisterAccumulator("fieldset", func() restrict.Accumulator {
		return restrict.NewFieldSet()
	})
	r.RegisterAccumulator("fields_by_id", func() restrict.Accumulator {
		return restrict.NewFieldsByID()
	})

	return r
}

// looseEqual compares context values against declaration params. YAML and
// JSON sources disagree on number types (int vs float64), so numbers
// compare by value; everything else falls back to deep equality.
func looseEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func stringParam(params map[string]any, name string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing param %q", name)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("param %q must be a non-empty string", name)
	}
	return s, nil
}

func anySliceParam(params map[string]any, name string) ([]any, error) {
	raw, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("missing param %q", name)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("param %q must be a list", name)
	}
	return list, nil
}

func stringSliceParam(params map[string]any, name string) ([]string, error) {
	list, err := anySliceParam(params, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("param %q must contain only strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func mapParam(params map[string]any, name string) (map[string]any, error) {
	raw, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("missing param %q", name)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("param %q must be a mapping", name)
	}
	return m, nil
}

// toStrings coerces a context value into a field-name list: a string, a
// []string, or a YAML-decoded []any of strings.
func toStrings(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
