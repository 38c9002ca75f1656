package grantpath

import (
	"context"
	"fmt"

	"github.com/grantpath/grantpath/internal/audit"
	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
	"github.com/grantpath/grantpath/internal/trail"
)

// Client answers authorization checks against a loaded permission graph.
// Safe for concurrent use.
type Client struct {
	cfg       clientConfig
	built     *graphcfg.Built
	graphHash string
	auditLog  *audit.Log
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = graphcfg.Builtins()
	}
	if cfg.contextFn == nil {
		cfg.contextFn = contextFromRequest
	}

	graphCfg, graphHash, err := graphcfg.LoadWithHash(cfg.graphPath)
	if err != nil {
		return nil, fmt.Errorf("grantpath: failed to load graph: %w", err)
	}
	built, err := graphCfg.Build(cfg.registry)
	if err != nil {
		return nil, fmt.Errorf("grantpath: failed to build graph: %w", err)
	}

	var auditLog *audit.Log
	if cfg.auditLogPath != "" {
		auditLog, err = audit.Open(cfg.auditLogPath)
		if err != nil {
			return nil, fmt.Errorf("grantpath: failed to open audit log: %w", err)
		}
	}

	return &Client{
		cfg:       cfg,
		built:     built,
		graphHash: graphHash,
		auditLog:  auditLog,
	}, nil
}

// Decide evaluates whether target is reachable from the start node under
// the given context. Denials are still decisions, never errors.
func (c *Client) Decide(ctx context.Context, target string, reqCtx Context) Decision {
	return c.DecideFrom(ctx, c.startNode(), target, reqCtx)
}

// DecideFrom is Decide with an explicit origin node.
func (c *Client) DecideFrom(ctx context.Context, from, target string, reqCtx Context) Decision {
	resultCtx, granted := c.built.Engine.CheckFrom(ctx, graph.Node(from), graph.Node(target), scope.Bindings(reqCtx), nil)
	d := Decision{
		Granted:    granted,
		Target:     target,
		From:       from,
		Context:    Context(resultCtx),
		DecisionID: trail.NewDecisionID(),
		GraphHash:  c.graphHash,
	}
	c.record(d)
	return d
}

// DecideRestricted evaluates target and collects the named restriction
// accumulators along the granted path. Unknown keys are errors; they point
// at a mismatch between caller and graph file, not at a denial.
func (c *Client) DecideRestricted(ctx context.Context, target string, reqCtx Context, keys ...string) (Decision, error) {
	all := c.built.NewRestrictions()
	restrictions := make(restrict.Set, len(keys))
	for _, key := range keys {
		acc, ok := all[key]
		if !ok {
			return Decision{}, fmt.Errorf("grantpath: unknown restriction key %q", key)
		}
		restrictions[key] = acc
	}

	from := c.startNode()
	resultCtx, granted := c.built.Engine.CheckFrom(ctx, graph.Node(from), graph.Node(target), scope.Bindings(reqCtx), restrictions)
	d := Decision{
		Granted:      granted,
		Target:       target,
		From:         from,
		Context:      Context(resultCtx),
		Restrictions: restrictions.Report(),
		DecisionID:   trail.NewDecisionID(),
		GraphHash:    c.graphHash,
	}
	c.record(d)
	return d, nil
}

// Check is Decide reduced to its boolean answer.
func (c *Client) Check(ctx context.Context, target string, reqCtx Context) bool {
	return c.Decide(ctx, target, reqCtx).Granted
}

// Explain returns every edge attempted on the way to target, in the order
// the edges were tried, without stopping at the first grant.
func (c *Client) Explain(ctx context.Context, target string, reqCtx Context) []Step {
	entries := c.built.Engine.ExplainFrom(ctx, graph.Node(c.startNode()), graph.Node(target), scope.Bindings(reqCtx))
	return toSteps(entries)
}

// GraphHash returns the "sha256:<hex>" hash of the loaded graph file.
func (c *Client) GraphHash() string {
	return c.graphHash
}

// Close releases the audit log, if one is open.
func (c *Client) Close() error {
	if c.auditLog != nil {
		return c.auditLog.Close()
	}
	return nil
}

func (c *Client) startNode() string {
	if c.cfg.start != "" {
		return c.cfg.start
	}
	return string(c.built.Start)
}

func (c *Client) record(d Decision) {
	if c.auditLog == nil {
		return
	}
	// Best effort; decisions keep flowing if the log is unwritable.
	_ = c.auditLog.Record(audit.Entry{
		DecisionID: d.DecisionID,
		Source:     "sdk",
		From:       d.From,
		Target:     d.Target,
		Granted:    d.Granted,
		GraphHash:  d.GraphHash,
	})
}
