// Package engine answers authorization queries against a permission graph.
// Check explores conditionally passable edges from a start node toward a
// target, concurrently per node, pruning branches the static topology can
// never connect, and merges the context bound along successful paths.
// Explain runs the exhaustive variant that records every attempted edge for
// auditing. Denial is a value, not an error: the only errors in this package
// are construction faults caught when the graph is built.
package engine

import (
	"context"
	"sync"

	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
)

// Engine evaluates checks against one immutable graph from a configured
// start node. Safe for concurrent use; all per-call state lives on the
// call stack and in per-branch scopes.
type Engine struct {
	graph *graph.Graph
	start graph.Node
}

// New returns an engine rooted at start. The start node is explicit
// configuration; nothing in the engine assumes a well-known node name.
func New(g *graph.Graph, start graph.Node) *Engine {
	return &Engine{graph: g, start: start}
}

// Check reports whether target is reachable from the configured start node
// under the seed context. On success it returns the merged context: every
// binding established along successful paths, deeper bindings shadowing
// shallower ones, later-declared sibling paths shadowing earlier ones.
// On denial it returns (nil, false); denial is never an error.
//
// restrictions may be nil. Edges on successful branches feed their fills
// into the accumulators whose keys appear in it, exactly once per traversed
// edge.
func (e *Engine) Check(ctx context.Context, target graph.Node, seed scope.Bindings, restrictions restrict.Set) (scope.Bindings, bool) {
	return e.CheckFrom(ctx, e.start, target, seed, restrictions)
}

// CheckFrom is Check with an explicit origin node.
func (e *Engine) CheckFrom(ctx context.Context, from, target graph.Node, seed scope.Bindings, restrictions restrict.Set) (scope.Bindings, bool) {
	root := scope.NewScope(seed)
	res := e.walk(ctx, from, target, root, restrictions, &pathStep{node: from})
	if !res.ok {
		return nil, false
	}
	return res.ctx, true
}

// branchResult is the outcome of exploring one node or one edge subtree.
type branchResult struct {
	ok  bool
	ctx scope.Bindings
}

// walk explores from one node toward target. The scope chain carries the
// context; path guards against revisiting a node on the same path, which is
// what terminates traversal on cyclic graphs.
func (e *Engine) walk(ctx context.Context, from, target graph.Node, sc *scope.Scope, restrictions restrict.Set, path *pathStep) branchResult {
	// A node always reaches itself; the context is returned as bound so far,
	// the deepest layer winning per key.
	if from == target {
		return branchResult{ok: true, ctx: sc.Snapshot()}
	}

	live := e.liveEdges(from, target, path)
	if len(live) == 0 {
		return branchResult{}
	}

	// Fan out one branch per edge, fan in before merging. Results keep the
	// declaration-order slot of their edge regardless of completion order.
	results := make([]branchResult, len(live))
	if len(live) == 1 {
		results[0] = e.followEdge(ctx, live[0], target, sc, restrictions, path)
	} else {
		var wg sync.WaitGroup
		for i, edge := range live {
			wg.Add(1)
			go func(i int, edge graph.Edge) {
				defer wg.Done()
				results[i] = e.followEdge(ctx, edge, target, sc, restrictions, path)
			}(i, edge)
		}
		wg.Wait()
	}

	// Merge successful branches in declaration order: a later-declared
	// branch overwrites earlier ones on key conflict. Deliberate tie-break,
	// not a race.
	any := false
	merged := make(scope.Bindings)
	for _, r := range results {
		if !r.ok {
			continue
		}
		any = true
		for k, v := range r.ctx {
			merged[k] = v
		}
	}
	if !any {
		return branchResult{}
	}
	return branchResult{ok: true, ctx: merged}
}

// liveEdges returns the outgoing edges of from that could still lead to
// target: structurally able to reach it and not looping back onto the
// current path. This is the only pruning of dynamic work by static topology.
func (e *Engine) liveEdges(from, target graph.Node, path *pathStep) []graph.Edge {
	all := e.graph.EdgesFrom(from)
	live := make([]graph.Edge, 0, len(all))
	for _, edge := range all {
		if !e.graph.CanReach(edge.To, target) {
			continue
		}
		if path.contains(edge.To) {
			continue
		}
		live = append(live, edge)
	}
	return live
}

// followEdge evaluates one edge and, if it passes, continues toward target
// in a child scope. Restriction fills run only after the subtree beyond the
// edge has succeeded, on the edge's own frozen scope.
func (e *Engine) followEdge(ctx context.Context, edge graph.Edge, target graph.Node, parent *scope.Scope, restrictions restrict.Set, path *pathStep) branchResult {
	edgeScope := parent.Child()

	ok, bind := evalPredicate(ctx, edge.Check, edgeScope)
	if !ok {
		return branchResult{}
	}
	edgeScope.Bind(bind)

	res := e.walk(ctx, edge.To, target, edgeScope, restrictions, path.with(edge.To))
	if !res.ok {
		return branchResult{}
	}
	runFills(ctx, edge, edgeScope, restrictions)
	return res
}

// evalPredicate runs an edge predicate with fault containment: a predicate
// error or panic fails the edge and nothing else. A nil predicate always
// passes.
func evalPredicate(ctx context.Context, check graph.Predicate, view scope.View) (ok bool, bind scope.Bindings) {
	if check == nil {
		return true, nil
	}
	defer func() {
		if recover() != nil {
			ok = false
			bind = nil
		}
	}()
	ok, bind, err := check(ctx, view)
	if err != nil {
		return false, nil
	}
	return ok, bind
}

// runFills feeds the edge's restriction fills for every key the caller
// supplied an accumulator for. Fill panics are contained the same way
// predicate faults are.
func runFills(ctx context.Context, edge graph.Edge, view scope.View, restrictions restrict.Set) {
	if len(edge.Restrict) == 0 || len(restrictions) == 0 {
		return
	}
	for key, fill := range edge.Restrict {
		acc, ok := restrictions[key]
		if !ok {
			continue
		}
		safeFill(ctx, fill, view, acc)
	}
}

func safeFill(ctx context.Context, fill restrict.FillFunc, view scope.View, acc restrict.Accumulator) {
	defer func() {
		_ = recover()
	}()
	fill(ctx, view, acc)
}

// pathStep is one link of the per-path visited chain. Each branch extends
// the chain without mutating it, so sibling branches share ancestors but
// never see each other's steps.
type pathStep struct {
	node graph.Node
	prev *pathStep
}

func (p *pathStep) contains(n graph.Node) bool {
	for cur := p; cur != nil; cur = cur.prev {
		if cur.node == n {
			return true
		}
	}
	return false
}

func (p *pathStep) with(n graph.Node) *pathStep {
	return &pathStep{node: n, prev: p}
}
