// Package restrict defines the restriction-accumulator contract used to
// collect partial-access grants during a permission check, plus the two
// accumulator implementations the CLI and scenario runner ship with.
//
// An accumulator starts empty, meaning nothing is allowed. Edge fills widen
// it additively as successful branches are discovered. Because branches run
// concurrently and in no fixed order, a usable accumulator operation must be
// commutative and monotonic: only ever grant more, never inspect or retract.
// Implementations own their thread safety; the traversal engine guarantees
// only that fills run once per successful edge, on that edge's frozen scope.
package restrict

import (
	"context"

	"github.com/grantpath/grantpath/internal/scope"
)

// Accumulator is any restriction collector. The engine never inspects one;
// it only routes it to the fills registered under the same restriction key.
type Accumulator any

// Set maps restriction keys to the caller's accumulators for one check.
// Only keys present here activate matching edge fills.
type Set map[string]Accumulator

// FillFunc widens an accumulator based on the frozen context of a
// successfully traversed edge. Fills return nothing; their only effect is
// the mutation of acc. A panicking fill is contained by the engine and
// leaves the accumulator as the fill left it.
type FillFunc func(ctx context.Context, view scope.View, acc Accumulator)

// Reporter is implemented by accumulators that can render their collected
// state for transport and display boundaries.
type Reporter interface {
	Report() any
}

// Report renders every accumulator in the set that implements Reporter.
// Accumulators without a Report method are omitted.
func (s Set) Report() map[string]any {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]any, len(s))
	for key, acc := range s {
		if r, ok := acc.(Reporter); ok {
			out[key] = r.Report()
		}
	}
	return out
}
