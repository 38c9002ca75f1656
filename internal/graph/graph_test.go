package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
)

func TestBuildExpandsCartesianDeclarations(t *testing.T) {
	g, err := Build([]Declaration{
		{
			From:        []Node{"editor", "moderator"},
			To:          []Node{"draft", "published"},
			Explanation: "staff can open content",
		},
	})
	if err != nil {
		t.Fatalf("expected build to succeed, got %v", err)
	}

	if g.EdgeCount() != 4 {
		t.Errorf("expected 4 expanded edges, got %d", g.EdgeCount())
	}
	edges := g.EdgesFrom("editor")
	if len(edges) != 2 || edges[0].To != "draft" || edges[1].To != "published" {
		t.Errorf("expected editor->draft,published in order, got %v", edges)
	}
	for _, e := range g.EdgesFrom("moderator") {
		if e.Explanation != "staff can open content" {
			t.Errorf("expected shared explanation, got %q", e.Explanation)
		}
	}
}

func TestBuildPreservesDeclarationOrder(t *testing.T) {
	g, err := Build([]Declaration{
		{From: []Node{"a"}, To: []Node{"b"}, Explanation: "first"},
		{From: []Node{"a"}, To: []Node{"c"}, Explanation: "second"},
		{From: []Node{"a"}, To: []Node{"b"}, Explanation: "third"},
	})
	if err != nil {
		t.Fatalf("expected build to succeed, got %v", err)
	}

	edges := g.EdgesFrom("a")
	want := []string{"first", "second", "third"}
	if len(edges) != len(want) {
		t.Fatalf("expected %d edges, got %d", len(want), len(edges))
	}
	for i, e := range edges {
		if e.Explanation != want[i] {
			t.Errorf("expected edge %d explanation %q, got %q", i, want[i], e.Explanation)
		}
	}
}

func TestBuildConstructionFaults(t *testing.T) {
	noop := func(ctx context.Context, v scope.View, acc restrict.Accumulator) {}

	cases := []struct {
		name string
		decl Declaration
		want string
	}{
		{
			name: "no from nodes",
			decl: Declaration{To: []Node{"b"}, Explanation: "x"},
			want: "no from nodes",
		},
		{
			name: "no to nodes",
			decl: Declaration{From: []Node{"a"}, Explanation: "x"},
			want: "no to nodes",
		},
		{
			name: "empty explanation",
			decl: Declaration{From: []Node{"a"}, To: []Node{"b"}},
			want: "empty explanation",
		},
		{
			name: "empty from node",
			decl: Declaration{From: []Node{""}, To: []Node{"b"}, Explanation: "x"},
			want: "empty from node",
		},
		{
			name: "empty to node",
			decl: Declaration{From: []Node{"a"}, To: []Node{""}, Explanation: "x"},
			want: "empty to node",
		},
		{
			name: "nil restriction fill",
			decl: Declaration{
				From: []Node{"a"}, To: []Node{"b"}, Explanation: "x",
				Restrict: map[string]restrict.FillFunc{"fields": nil},
			},
			want: "nil restriction fill",
		},
		{
			name: "empty restriction key",
			decl: Declaration{
				From: []Node{"a"}, To: []Node{"b"}, Explanation: "x",
				Restrict: map[string]restrict.FillFunc{"": noop},
			},
			want: "empty restriction key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build([]Declaration{tc.decl})
			if err == nil {
				t.Fatal("expected construction fault, got nil error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %q", tc.want, err)
			}
		})
	}
}

func TestEdgesFromUnknownNode(t *testing.T) {
	g := MustBuild([]Declaration{
		{From: []Node{"a"}, To: []Node{"b"}, Explanation: "x"},
	})
	if edges := g.EdgesFrom("ghost"); len(edges) != 0 {
		t.Errorf("expected no edges for unknown node, got %d", len(edges))
	}
}

func TestNodesSortedAndComplete(t *testing.T) {
	g := MustBuild([]Declaration{
		{From: []Node{"zeta"}, To: []Node{"alpha"}, Explanation: "x"},
		{From: []Node{"mid"}, To: []Node{"zeta"}, Explanation: "y"},
	})

	nodes := g.Nodes()
	want := []Node{"alpha", "mid", "zeta"}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("expected node %q at %d, got %q", want[i], i, nodes[i])
		}
	}
	if !g.HasNode("mid") {
		t.Error("expected HasNode(mid)")
	}
	if g.HasNode("ghost") {
		t.Error("expected !HasNode(ghost)")
	}
}

func TestMustBuildPanicsOnFault(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on malformed declaration")
		}
	}()
	MustBuild([]Declaration{{Explanation: "x"}})
}
