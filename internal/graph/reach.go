package graph

// CanReach reports whether a directed path of edges leads from one node to
// another, ignoring predicates entirely. It is the static pruning oracle of
// the traversal engine: false means no sequence of passing edges could ever
// connect the two, so a branch ending there is structurally dead.
//
// Reachability depends only on topology, so results are computed once per
// source node for the lifetime of the graph and shared by all queries.
func (g *Graph) CanReach(from, to Node) bool {
	if from == to {
		return true
	}
	_, ok := g.reachableFrom(from)[to]
	return ok
}

// reachableFrom returns the set of nodes reachable from source through at
// least one edge. The set is cached; concurrent first lookups of the same
// source are collapsed into a single computation.
func (g *Graph) reachableFrom(source Node) map[Node]struct{} {
	g.mu.RLock()
	set, ok := g.reach[source]
	g.mu.RUnlock()
	if ok {
		return set
	}

	v, _, _ := g.group.Do(string(source), func() (any, error) {
		g.mu.RLock()
		cached, ok := g.reach[source]
		g.mu.RUnlock()
		if ok {
			return cached, nil
		}

		computed := g.walkFrom(source)
		g.mu.Lock()
		g.reach[source] = computed
		g.mu.Unlock()
		return computed, nil
	})
	return v.(map[Node]struct{})
}

// walkFrom runs a breadth-first walk over the adjacency from source. The
// visited set makes cycles terminate; a cycle back to source simply puts
// source into its own reachable set, which is harmless.
func (g *Graph) walkFrom(source Node) map[Node]struct{} {
	out := make(map[Node]struct{})
	queue := make([]Node, 0, len(g.edges[source]))

	for _, e := range g.edges[source] {
		if _, ok := out[e.To]; !ok {
			out[e.To] = struct{}{}
			queue = append(queue, e.To)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[n] {
			if _, ok := out[e.To]; !ok {
				out[e.To] = struct{}{}
				queue = append(queue, e.To)
			}
		}
	}
	return out
}
