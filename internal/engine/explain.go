package engine

import (
	"context"
	"sync"

	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/scope"
)

// TrailEntry records one attempted edge of an explain traversal: where the
// edge leads, the declared explanation, whether its predicate passed, and
// the context the predicate saw plus whatever it bound. Entries form a
// pre-order walk of the attempted subtree; Depth is the recursion depth for
// indentation by renderers.
type TrailEntry struct {
	To          graph.Node     `json:"to"`
	Explanation string         `json:"explanation"`
	CheckPassed bool           `json:"check_passed"`
	Context     scope.Bindings `json:"context"`
	Depth       int            `json:"depth"`
}

// Explain traverses from the configured start node toward target and
// records every attempted edge, passing or not. Unlike Check it never stops
// at the first success and never runs restriction fills; it exists to answer
// why every candidate path succeeded or failed. Structurally dead edges are
// still pruned: an edge that cannot reach target is not an attempt.
func (e *Engine) Explain(ctx context.Context, target graph.Node, seed scope.Bindings) []TrailEntry {
	return e.ExplainFrom(ctx, e.start, target, seed)
}

// ExplainFrom is Explain with an explicit origin node.
func (e *Engine) ExplainFrom(ctx context.Context, from, target graph.Node, seed scope.Bindings) []TrailEntry {
	root := scope.NewScope(seed)
	return e.explainWalk(ctx, from, target, root, &pathStep{node: from}, 0)
}

// explainWalk mirrors walk but collects records instead of merging
// contexts. Branches evaluate concurrently; their record sequences are
// spliced back in declaration order so the trail is deterministic.
func (e *Engine) explainWalk(ctx context.Context, from, target graph.Node, sc *scope.Scope, path *pathStep, depth int) []TrailEntry {
	if from == target {
		return nil
	}
	live := e.liveEdges(from, target, path)
	if len(live) == 0 {
		return nil
	}

	subs := make([][]TrailEntry, len(live))
	if len(live) == 1 {
		subs[0] = e.explainEdge(ctx, live[0], target, sc, path, depth)
	} else {
		var wg sync.WaitGroup
		for i, edge := range live {
			wg.Add(1)
			go func(i int, edge graph.Edge) {
				defer wg.Done()
				subs[i] = e.explainEdge(ctx, edge, target, sc, path, depth)
			}(i, edge)
		}
		wg.Wait()
	}

	var out []TrailEntry
	for _, seq := range subs {
		out = append(out, seq...)
	}
	return out
}

// explainEdge produces the record for one edge followed, when the predicate
// passed and the edge does not land on the target, by the records of the
// subtree beyond it.
func (e *Engine) explainEdge(ctx context.Context, edge graph.Edge, target graph.Node, parent *scope.Scope, path *pathStep, depth int) []TrailEntry {
	edgeScope := parent.Child()

	ok, bind := evalPredicate(ctx, edge.Check, edgeScope)
	if ok {
		edgeScope.Bind(bind)
	}

	seq := []TrailEntry{{
		To:          edge.To,
		Explanation: edge.Explanation,
		CheckPassed: ok,
		Context:     edgeScope.Snapshot(),
		Depth:       depth,
	}}
	if ok && edge.To != target {
		seq = append(seq, e.explainWalk(ctx, edge.To, target, edgeScope, path.with(edge.To), depth+1)...)
	}
	return seq
}
