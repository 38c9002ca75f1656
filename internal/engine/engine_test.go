package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
)

func keyIs(key string, want any) graph.Predicate {
	return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
		got, ok := v.Get(key)
		return ok && got == want, nil, nil
	}
}

func truthy(key string) graph.Predicate {
	return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
		got, _ := v.Get(key)
		b, ok := got.(bool)
		return ok && b, nil, nil
	}
}

func binds(b scope.Bindings) graph.Predicate {
	return func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
		return true, b, nil
	}
}

func TestSelfCheckReturnsContextUnchanged(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"public"}, To: []graph.Node{"member"}, Explanation: "anyone may join"},
	})
	e := New(g, "public")

	got, ok := e.Check(context.Background(), "public", scope.Bindings{"user": "alice"}, nil)
	if !ok {
		t.Fatal("expected self check to succeed")
	}
	if len(got) != 1 || got["user"] != "alice" {
		t.Errorf("expected context unchanged, got %v", got)
	}

	// Holds even for nodes the graph has never heard of.
	if _, ok := e.CheckFrom(context.Background(), "ghost", "ghost", nil, nil); !ok {
		t.Error("expected unknown node to reach itself")
	}
}

func TestAlwaysPassableEdgeGrants(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "open door"},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "b", nil, nil); !ok {
		t.Error("expected edge with no predicate to grant")
	}
}

func TestUnknownTargetDenies(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "open door"},
	})
	e := New(g, "a")

	got, ok := e.Check(context.Background(), "nowhere", scope.Bindings{"k": "v"}, nil)
	if ok {
		t.Error("expected unknown target to deny")
	}
	if got != nil {
		t.Errorf("expected nil context on denial, got %v", got)
	}
}

func TestDeclarationOrderTieBreak(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "first branch", Check: binds(scope.Bindings{"winner": "b", "only_b": true})},
		{From: []graph.Node{"a"}, To: []graph.Node{"c"}, Explanation: "second branch", Check: binds(scope.Bindings{"winner": "c", "only_c": true})},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "b lands"},
		{From: []graph.Node{"c"}, To: []graph.Node{"t"}, Explanation: "c lands"},
	})
	e := New(g, "a")

	got, ok := e.Check(context.Background(), "t", nil, nil)
	if !ok {
		t.Fatal("expected both branches to grant")
	}
	if got["winner"] != "c" {
		t.Errorf("expected later-declared branch to win the key, got %v", got["winner"])
	}
	if got["only_b"] != true || got["only_c"] != true {
		t.Errorf("expected disjoint keys from both branches, got %v", got)
	}
}

func TestDeeperBindingShadowsEarlier(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "provisional", Check: binds(scope.Bindings{"user": "guessed"})},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "definitive", Check: binds(scope.Bindings{"user": "loaded"})},
	})
	e := New(g, "a")

	got, ok := e.Check(context.Background(), "t", scope.Bindings{"user": "seed"}, nil)
	if !ok {
		t.Fatal("expected path to grant")
	}
	if got["user"] != "loaded" {
		t.Errorf("expected binding closest to target to win, got %v", got["user"])
	}
}

func TestSiblingBranchesAreWriteIsolated(t *testing.T) {
	gate := make(chan struct{})
	leaked := make(chan bool, 1)

	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "leaker", Check: binds(scope.Bindings{"leak": "yes"})},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "leaker lands", Check: func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			// Runs strictly after the leaker branch bound its value.
			close(gate)
			return true, nil, nil
		}},
		{From: []graph.Node{"a"}, To: []graph.Node{"c"}, Explanation: "observer", Check: func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			<-gate
			leaked <- v.Has("leak")
			return true, nil, nil
		}},
		{From: []graph.Node{"c"}, To: []graph.Node{"t"}, Explanation: "observer lands"},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, nil); !ok {
		t.Fatal("expected both branches to grant")
	}
	if <-leaked {
		t.Error("expected sibling branch binding to be invisible")
	}
}

func TestPredicateFaultDoesNotKillSiblings(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "panics", Check: func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			panic("predicate bug")
		}},
		{From: []graph.Node{"a"}, To: []graph.Node{"c"}, Explanation: "errors", Check: func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			return false, nil, errors.New("backend unavailable")
		}},
		{From: []graph.Node{"a"}, To: []graph.Node{"d"}, Explanation: "sound", Check: binds(scope.Bindings{"path": "d"})},
		{From: []graph.Node{"b", "c", "d"}, To: []graph.Node{"t"}, Explanation: "lands"},
	})
	e := New(g, "a")

	got, ok := e.Check(context.Background(), "t", nil, nil)
	if !ok {
		t.Fatal("expected healthy sibling to grant despite faults")
	}
	if got["path"] != "d" {
		t.Errorf("expected context from the sound branch, got %v", got)
	}
}

func TestPruningSkipsDeadEdgesWithoutFalseNegatives(t *testing.T) {
	var mu sync.Mutex
	deadEvaluated := false

	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"dead_end"}, Explanation: "goes nowhere", Check: func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
			mu.Lock()
			deadEvaluated = true
			mu.Unlock()
			return true, nil, nil
		}},
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "viable"},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "lands"},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, nil); !ok {
		t.Fatal("expected structurally live path to grant")
	}
	mu.Lock()
	defer mu.Unlock()
	if deadEvaluated {
		t.Error("expected predicate on a structurally dead edge to never run")
	}
}

func TestCheckTerminatesOnCyclicGraph(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "forward"},
		{From: []graph.Node{"b"}, To: []graph.Node{"a"}, Explanation: "back edge"},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "gated exit", Check: keyIs("pass", "yes")},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, nil); ok {
		t.Error("expected denial when the gated exit fails")
	}
	if _, ok := e.Check(context.Background(), "t", scope.Bindings{"pass": "yes"}, nil); !ok {
		t.Error("expected grant through the cycle's exit")
	}
}

func TestRestrictionFillsOnlyOnSuccessfulBranches(t *testing.T) {
	allow := func(fields ...string) restrict.FillFunc {
		return func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
			acc.(*restrict.FieldSet).Allow(fields...)
		}
	}

	g := graph.MustBuild([]graph.Declaration{
		// Edge passes, but the branch dies beyond it: its fill must not run.
		{From: []graph.Node{"a"}, To: []graph.Node{"x"}, Explanation: "doomed branch",
			Restrict: map[string]restrict.FillFunc{"fields": allow("leaked")}},
		{From: []graph.Node{"x"}, To: []graph.Node{"t"}, Explanation: "never passes", Check: keyIs("never", "ever")},
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "good branch",
			Restrict: map[string]restrict.FillFunc{"fields": allow("title", "body")}},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "lands",
			Restrict: map[string]restrict.FillFunc{"fields": allow("footer")}},
	})
	e := New(g, "a")

	fs := restrict.NewFieldSet()
	if _, ok := e.Check(context.Background(), "t", nil, restrict.Set{"fields": fs}); !ok {
		t.Fatal("expected good branch to grant")
	}

	for _, want := range []string{"title", "body", "footer"} {
		if !fs.Allowed(want) {
			t.Errorf("expected %q allowed from successful branch", want)
		}
	}
	if fs.Allowed("leaked") {
		t.Error("expected no fill from the doomed branch")
	}
}

func TestRestrictionFillRunsExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "counted",
			Restrict: map[string]restrict.FillFunc{"fields": func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
				mu.Lock()
				calls++
				mu.Unlock()
			}}},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "lands"},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, restrict.Set{"fields": restrict.NewFieldSet()}); !ok {
		t.Fatal("expected grant")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected fill to run exactly once, got %d", calls)
	}
}

func TestRestrictionFillsFilteredByCallerKeys(t *testing.T) {
	fieldsRan := false
	idsRan := false

	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"t"}, Explanation: "restricted",
			Restrict: map[string]restrict.FillFunc{
				"fields": func(ctx context.Context, v scope.View, acc restrict.Accumulator) { fieldsRan = true },
				"ids":    func(ctx context.Context, v scope.View, acc restrict.Accumulator) { idsRan = true },
			}},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, restrict.Set{"fields": restrict.NewFieldSet()}); !ok {
		t.Fatal("expected grant")
	}
	if !fieldsRan {
		t.Error("expected fill for supplied key to run")
	}
	if idsRan {
		t.Error("expected fill for absent key to be skipped")
	}
}

func TestRestrictionFillPanicIsContained(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"t"}, Explanation: "explosive fill",
			Restrict: map[string]restrict.FillFunc{"fields": func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
				panic("fill bug")
			}}},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, restrict.Set{"fields": restrict.NewFieldSet()}); !ok {
		t.Error("expected grant despite fill panic")
	}
}

func TestFillSeesEdgeScopeNotDeeperBindings(t *testing.T) {
	var mu sync.Mutex
	var sawUser any
	sawDeep := false

	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"a"}, To: []graph.Node{"b"}, Explanation: "binds user", Check: binds(scope.Bindings{"user": "alice"}),
			Restrict: map[string]restrict.FillFunc{"fields": func(ctx context.Context, v scope.View, acc restrict.Accumulator) {
				mu.Lock()
				sawUser, _ = v.Get("user")
				sawDeep = v.Has("deep")
				mu.Unlock()
			}}},
		{From: []graph.Node{"b"}, To: []graph.Node{"t"}, Explanation: "binds deep", Check: binds(scope.Bindings{"deep": true})},
	})
	e := New(g, "a")

	if _, ok := e.Check(context.Background(), "t", nil, restrict.Set{"fields": restrict.NewFieldSet()}); !ok {
		t.Fatal("expected grant")
	}
	mu.Lock()
	defer mu.Unlock()
	if sawUser != "alice" {
		t.Errorf("expected fill to see its edge's binding, got %v", sawUser)
	}
	if sawDeep {
		t.Error("expected fill to not see bindings from deeper layers")
	}
}

func TestPublicSecretAdminScenario(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"public"}, To: []graph.Node{"secret"}, Explanation: "knows the passphrase",
			Check: func(ctx context.Context, v scope.View) (bool, scope.Bindings, error) {
				got, ok := v.Get("key")
				if !ok || got != "s" {
					return false, nil, nil
				}
				return true, scope.Bindings{"via": "front door"}, nil
			}},
		{From: []graph.Node{"secret"}, To: []graph.Node{"admin"}, Explanation: "secrets imply admin"},
	})
	e := New(g, "public")
	ctx := context.Background()

	if _, ok := e.Check(ctx, "secret", scope.Bindings{"key": "s"}, nil); !ok {
		t.Error("expected secret reachable with the right key")
	}
	if _, ok := e.Check(ctx, "secret", scope.Bindings{"key": "x"}, nil); ok {
		t.Error("expected secret denied with the wrong key")
	}

	got, ok := e.Check(ctx, "admin", scope.Bindings{"key": "s"}, nil)
	if !ok {
		t.Fatal("expected admin reachable with the right key")
	}
	if got["key"] != "s" || got["via"] != "front door" {
		t.Errorf("expected context to carry seed and path bindings, got %v", got)
	}

	if _, ok := e.Check(ctx, "admin", scope.Bindings{}, nil); ok {
		t.Error("expected admin denied with an empty context")
	}
}

func TestModeratorAliasScenario(t *testing.T) {
	g := graph.MustBuild([]graph.Declaration{
		{From: []graph.Node{"authenticated"}, To: []graph.Node{"can_edit"}, Explanation: "authors may edit", Check: truthy("is_author")},
		{From: []graph.Node{"authenticated"}, To: []graph.Node{"moderator"}, Explanation: "moderators hold the role", Check: truthy("is_moderator")},
		{From: []graph.Node{"moderator"}, To: []graph.Node{"can_edit"}, Explanation: "moderators may edit"},
	})
	e := New(g, "authenticated")
	ctx := context.Background()

	if _, ok := e.Check(ctx, "can_edit", scope.Bindings{"is_moderator": true}, nil); !ok {
		t.Error("expected moderator-only context to grant")
	}
	if _, ok := e.Check(ctx, "can_edit", scope.Bindings{}, nil); ok {
		t.Error("expected context satisfying neither predicate to deny")
	}
}
