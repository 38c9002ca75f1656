package graphcfg

import (
	"fmt"

	"github.com/grantpath/grantpath/internal/engine"
	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/restrict"
)

// PredicateBuilder constructs an edge predicate from declaration params.
type PredicateBuilder func(params map[string]any) (graph.Predicate, error)

// FillBuilder constructs a restriction fill from declaration params.
type FillBuilder func(params map[string]any) (restrict.FillFunc, error)

// AccumulatorFactory constructs one empty accumulator for a check.
type AccumulatorFactory func() restrict.Accumulator

// Registry resolves the names a graph file uses for checks, fills and
// accumulator kinds. Registering an existing name overrides it, so
// embedders can replace builtins deliberately.
type Registry struct {
	predicates   map[string]PredicateBuilder
	fills        map[string]FillBuilder
	accumulators map[string]AccumulatorFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates:   make(map[string]PredicateBuilder),
		fills:        make(map[string]FillBuilder),
		accumulators: make(map[string]AccumulatorFactory),
	}
}

// RegisterPredicate makes a predicate builder addressable from graph files.
func (r *Registry) RegisterPredicate(name string, b PredicateBuilder) {
	r.predicates[name] = b
}

// RegisterFill makes a fill builder addressable from graph files.
func (r *Registry) RegisterFill(name string, b FillBuilder) {
	r.fills[name] = b
}

// RegisterAccumulator makes an accumulator kind addressable from graph
// files.
func (r *Registry) RegisterAccumulator(name string, f AccumulatorFactory) {
	r.accumulators[name] = f
}

// Built is the runnable form of a graph file.
type Built struct {
	Graph  *graph.Graph
	Start  graph.Node
	Engine *engine.Engine

	factories map[string]AccumulatorFactory
}

// NewRestrictions returns a fresh accumulator set matching the file's
// accumulators section, one empty accumulator per declared key. Returns nil
// when the file declares none.
func (b *Built) NewRestrictions() restrict.Set {
	if len(b.factories) == 0 {
		return nil
	}
	set := make(restrict.Set, len(b.factories))
	for key, factory := range b.factories {
		set[key] = factory()
	}
	return set
}

// Build resolves every referenced name against the registry, expands the
// declarations and constructs the graph and engine. Unknown names, a
// missing start node and malformed declarations are all construction
// faults.
func (c *Config) Build(reg *Registry) (*Built, error) {
	if c.Start == "" {
		return nil, fmt.Errorf("graph file must declare a start node")
	}

	factories := make(map[string]AccumulatorFactory, len(c.Accumulators))
	for key, kind := range c.Accumulators {
		factory, ok := reg.accumulators[kind]
		if !ok {
			return nil, fmt.Errorf("accumulator %q: unknown kind %q", key, kind)
		}
		factories[key] = factory
	}

	decls := make([]graph.Declaration, 0, len(c.Edges))
	for i, e := range c.Edges {
		decl := graph.Declaration{
			From:        toNodes(e.From),
			To:          toNodes(e.To),
			Explanation: e.Explanation,
		}

		if e.Check != "" {
			builder, ok := reg.predicates[e.Check]
			if !ok {
				return nil, fmt.Errorf("edge %d: unknown check %q", i, e.Check)
			}
			pred, err := builder(e.Params)
			if err != nil {
				return nil, fmt.Errorf("edge %d: check %q: %w", i, e.Check, err)
			}
			decl.Check = pred
		}

		if len(e.Restrict) > 0 {
			decl.Restrict = make(map[string]restrict.FillFunc, len(e.Restrict))
			for key, fd := range e.Restrict {
				builder, ok := reg.fills[fd.Fill]
				if !ok {
					return nil, fmt.Errorf("edge %d: restriction %q: unknown fill %q", i, key, fd.Fill)
				}
				fill, err := builder(fd.Params)
				if err != nil {
					return nil, fmt.Errorf("edge %d: restriction %q: fill %q: %w", i, key, fd.Fill, err)
				}
				decl.Restrict[key] = fill
			}
		}

		decls = append(decls, decl)
	}

	g, err := graph.Build(decls)
	if err != nil {
		return nil, err
	}

	start := graph.Node(c.Start)
	return &Built{
		Graph:     g,
		Start:     start,
		Engine:    engine.New(g, start),
		factories: factories,
	}, nil
}

func toNodes(list NodeList) []graph.Node {
	out := make([]graph.Node, len(list))
	for i, s := range list {
		out[i] = graph.Node(s)
	}
	return out
}
