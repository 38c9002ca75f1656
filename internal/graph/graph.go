// Package graph defines the permission graph: named nodes connected by
// directed, conditionally passable edges. A graph is built once from edge
// declarations, validated eagerly, and immutable afterwards, which is what
// lets traversals and the reachability oracle run concurrently against it.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
)

// Node identifies a vertex in the permission graph. Nodes have no registry;
// a node exists exactly where edges mention it.
type Node string

// Predicate guards an edge. It reads the traversal context through view and
// reports whether the edge passes, optionally returning bindings to merge
// into the edge's context layer on success. Returning an error fails the
// edge; it never aborts sibling edges.
type Predicate func(ctx context.Context, view scope.View) (ok bool, bind scope.Bindings, err error)

// Edge is one directed, conditionally passable connection. A nil Check
// means the edge always passes. Restrict maps restriction keys to the fill
// that widens the caller's accumulator when this edge lies on a successful
// path.
type Edge struct {
	From        Node
	To          Node
	Explanation string
	Check       Predicate
	Restrict    map[string]restrict.FillFunc
}

// Declaration is the authoring form of edges: every pair from the cartesian
// product From x To becomes one Edge sharing the same explanation, check
// and restriction fills.
type Declaration struct {
	From        []Node
	To          []Node
	Explanation string
	Check       Predicate
	Restrict    map[string]restrict.FillFunc
}

// Graph is the built, immutable permission graph. Adjacency preserves
// declaration order, which is semantic: the traversal engine merges sibling
// branch results in this order.
type Graph struct {
	edges     map[Node][]Edge
	nodes     []Node
	edgeCount int

	mu    sync.RWMutex
	reach map[Node]map[Node]struct{}
	group singleflight.Group
}

// Build validates declarations and expands them into a graph. Malformed
// declarations (no from, no to, empty node name, empty explanation, a nil
// or unnamed restriction fill) are construction faults and fail the build;
// nothing is deferred to query time.
func Build(decls []Declaration) (*Graph, error) {
	g := &Graph{
		edges: make(map[Node][]Edge),
		reach: make(map[Node]map[Node]struct{}),
	}
	seen := make(map[Node]struct{})

	for i, d := range decls {
		if len(d.From) == 0 {
			return nil, fmt.Errorf("declaration %d: no from nodes", i)
		}
		if len(d.To) == 0 {
			return nil, fmt.Errorf("declaration %d: no to nodes", i)
		}
		if d.Explanation == "" {
			return nil, fmt.Errorf("declaration %d: empty explanation", i)
		}
		for key, fill := range d.Restrict {
			if key == "" {
				return nil, fmt.Errorf("declaration %d: empty restriction key", i)
			}
			if fill == nil {
				return nil, fmt.Errorf("declaration %d: nil restriction fill for key %q", i, key)
			}
		}
		for _, from := range d.From {
			if from == "" {
				return nil, fmt.Errorf("declaration %d: empty from node", i)
			}
			for _, to := range d.To {
				if to == "" {
					return nil, fmt.Errorf("declaration %d: empty to node", i)
				}
				g.edges[from] = append(g.edges[from], Edge{
					From:        from,
					To:          to,
					Explanation: d.Explanation,
					Check:       d.Check,
					Restrict:    d.Restrict,
				})
				g.edgeCount++
				seen[from] = struct{}{}
				seen[to] = struct{}{}
			}
		}
	}

	g.nodes = make([]Node, 0, len(seen))
	for n := range seen {
		g.nodes = append(g.nodes, n)
	}
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i] < g.nodes[j] })
	return g, nil
}

// MustBuild is Build for static graphs known to be well formed. It panics
// on a construction fault.
func MustBuild(decls []Declaration) *Graph {
	g, err := Build(decls)
	if err != nil {
		panic(err)
	}
	return g
}

// EdgesFrom returns the outgoing edges of n in declaration order. Unknown
// nodes yield nil. The returned slice is shared; callers must not modify it.
func (g *Graph) EdgesFrom(n Node) []Edge {
	return g.edges[n]
}

// Nodes returns every node mentioned by any edge, sorted.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// HasNode reports whether any edge mentions n.
func (g *Graph) HasNode(n Node) bool {
	i := sort.Search(len(g.nodes), func(i int) bool { return g.nodes[i] >= n })
	return i < len(g.nodes) && g.nodes[i] == n
}

// EdgeCount returns the number of expanded edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}
