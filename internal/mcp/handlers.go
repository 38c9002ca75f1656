package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/trail"
)

// --- Input/Output types ---

// CheckInput defines parameters for the grantpath_check tool.
type CheckInput struct {
	Target       string         `json:"target" jsonschema:"target permission node"`
	From         string         `json:"from,omitempty" jsonschema:"origin node, defaults to the graph start"`
	Context      map[string]any `json:"context,omitempty" jsonschema:"request context bindings"`
	Restrictions []string       `json:"restrictions,omitempty" jsonschema:"restriction keys to collect"`
}

// CheckOutput contains the decision.
type CheckOutput struct {
	Granted      bool           `json:"granted"`
	Context      map[string]any `json:"context,omitempty"`
	Restrictions map[string]any `json:"restrictions,omitempty"`
	DecisionID   string         `json:"decision_id"`
	GraphHash    string         `json:"graph_hash"`
}

// ExplainInput defines parameters for the grantpath_explain tool.
type ExplainInput struct {
	Target  string         `json:"target" jsonschema:"target permission node"`
	From    string         `json:"from,omitempty" jsonschema:"origin node, defaults to the graph start"`
	Context map[string]any `json:"context,omitempty" jsonschema:"request context bindings"`
}

// ExplainOutput contains the decision trail.
type ExplainOutput struct {
	Target    string      `json:"target"`
	From      string      `json:"from"`
	Granted   bool        `json:"granted"`
	Trail     []TrailItem `json:"trail"`
	GraphHash string      `json:"graph_hash"`
}

// TrailItem is one edge evaluation in the decision trail.
type TrailItem struct {
	To          string         `json:"to"`
	Explanation string         `json:"explanation"`
	CheckPassed bool           `json:"check_passed"`
	Context     map[string]any `json:"context"`
	Depth       int            `json:"depth"`
}

// GraphInput is empty, no parameters needed.
type GraphInput struct{}

// GraphOutput lists the permission graph.
type GraphOutput struct {
	Start     string     `json:"start"`
	Nodes     []string   `json:"nodes"`
	Edges     []EdgeItem `json:"edges"`
	GraphHash string     `json:"graph_hash"`
}

// EdgeItem describes a single edge.
type EdgeItem struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Explanation string `json:"explanation"`
}

// --- Handlers ---

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	if input.Target == "" {
		return nil, CheckOutput{}, fmt.Errorf("missing target")
	}

	built, graphHash := s.snapshot()

	var restrictions restrict.Set
	if len(input.Restrictions) > 0 {
		all := built.NewRestrictions()
		restrictions = make(restrict.Set, len(input.Restrictions))
		for _, key := range input.Restrictions {
			acc, ok := all[key]
			if !ok {
				return nil, CheckOutput{}, fmt.Errorf("unknown restriction key %q", key)
			}
			restrictions[key] = acc
		}
	}

	from := built.Start
	if input.From != "" {
		from = graph.Node(input.From)
	}

	start := time.Now()
	resultCtx, granted := built.Engine.CheckFrom(ctx, from, graph.Node(input.Target), input.Context, restrictions)
	elapsed := time.Since(start)

	decisionID := trail.NewDecisionID()
	s.recordDecision(decisionID, string(from), input.Target, granted, graphHash, input.Context, elapsed)

	return nil, CheckOutput{
		Granted:      granted,
		Context:      resultCtx,
		Restrictions: restrictions.Report(),
		DecisionID:   decisionID,
		GraphHash:    graphHash,
	}, nil
}

func (s *Server) handleExplain(ctx context.Context, req *mcpsdk.CallToolRequest, input ExplainInput) (*mcpsdk.CallToolResult, ExplainOutput, error) {
	if input.Target == "" {
		return nil, ExplainOutput{}, fmt.Errorf("missing target")
	}

	built, graphHash := s.snapshot()

	from := built.Start
	if input.From != "" {
		from = graph.Node(input.From)
	}

	target := graph.Node(input.Target)
	entries := built.Engine.ExplainFrom(ctx, from, target, input.Context)
	_, granted := built.Engine.CheckFrom(ctx, from, target, input.Context, nil)

	items := make([]TrailItem, len(entries))
	for i, e := range entries {
		items[i] = TrailItem{
			To:          string(e.To),
			Explanation: e.Explanation,
			CheckPassed: e.CheckPassed,
			Context:     e.Context,
			Depth:       e.Depth,
		}
	}

	return nil, ExplainOutput{
		Target:    input.Target,
		From:      string(from),
		Granted:   granted,
		Trail:     items,
		GraphHash: graphHash,
	}, nil
}

func (s *Server) handleGraph(ctx context.Context, req *mcpsdk.CallToolRequest, input GraphInput) (*mcpsdk.CallToolResult, GraphOutput, error) {
	built, graphHash := s.snapshot()

	nodes := built.Graph.Nodes()
	names := make([]string, len(nodes))
	var edges []EdgeItem
	for i, node := range nodes {
		names[i] = string(node)
		for _, edge := range built.Graph.EdgesFrom(node) {
			edges = append(edges, EdgeItem{
				From:        string(edge.From),
				To:          string(edge.To),
				Explanation: edge.Explanation,
			})
		}
	}

	return nil, GraphOutput{
		Start:     string(built.Start),
		Nodes:     names,
		Edges:     edges,
		GraphHash: graphHash,
	}, nil
}
