// Package mcp exposes the decision engine to MCP clients over stdio. An
// assistant gets three tools: check a permission, explain a decision, and
// inspect the graph. A denial is a tool result, never a tool error.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/grantpath/grantpath/internal/audit"
	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/journal"
	"github.com/grantpath/grantpath/internal/scope"
)

// Config holds MCP server configuration.
type Config struct {
	GraphPath    string
	AuditLogPath string
	JournalPath  string
	Registry     *graphcfg.Registry
}

// Server wraps the MCP SDK server around a loaded permission graph.
type Server struct {
	mu        sync.RWMutex
	built     *graphcfg.Built
	graphHash string

	registry  *graphcfg.Registry
	auditLog  *audit.Log
	journal   *journal.Journal
	cfg       Config
	mcpServer *mcpsdk.Server
}

// New creates an MCP server with a loaded permission graph and tools.
func New(cfg Config) (*Server, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = graphcfg.Builtins()
	}

	graphCfg, graphHash, err := graphcfg.LoadWithHash(cfg.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph config: %w", err)
	}
	built, err := graphCfg.Build(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build permission graph: %w", err)
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		jnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			if auditLog != nil {
				auditLog.Close()
			}
			return nil, fmt.Errorf("failed to open decision journal: %w", err)
		}
	}

	s := &Server{
		built:     built,
		graphHash: graphHash,
		registry:  registry,
		auditLog:  auditLog,
		journal:   jnl,
		cfg:       cfg,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "grantpath",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the audit log and journal if configured.
func (s *Server) Close() error {
	var firstErr error
	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil {
			firstErr = err
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReloadGraph rebuilds the permission graph from disk and swaps it in. A
// rebuild failure keeps the running graph.
func (s *Server) ReloadGraph() error {
	graphCfg, graphHash, err := graphcfg.LoadWithHash(s.cfg.GraphPath)
	if err != nil {
		return fmt.Errorf("failed to reload graph config: %w", err)
	}
	built, err := graphCfg.Build(s.registry)
	if err != nil {
		return fmt.Errorf("failed to rebuild permission graph: %w", err)
	}

	s.mu.Lock()
	s.built = built
	s.graphHash = graphHash
	s.mu.Unlock()
	return nil
}

func (s *Server) snapshot() (*graphcfg.Built, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.built, s.graphHash
}

func (s *Server) recordDecision(decisionID, from, target string, granted bool, graphHash string, seed scope.Bindings, elapsed time.Duration) {
	if s.auditLog != nil {
		s.auditLog.Record(audit.Entry{
			DecisionID: decisionID,
			Source:     "mcp",
			From:       from,
			Target:     target,
			Granted:    granted,
			GraphHash:  graphHash,
		})
	}
	if s.journal != nil {
		ctxJSON := "{}"
		if len(seed) > 0 {
			if raw, err := json.Marshal(seed); err == nil {
				ctxJSON = string(raw)
			}
		}
		s.journal.Record(journal.Decision{
			ID:        decisionID,
			Source:    "mcp",
			From:      from,
			Target:    target,
			Granted:   granted,
			Context:   ctxJSON,
			ElapsedMS: elapsed.Milliseconds(),
		})
	}
}

// registerTools adds all grantpath tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "grantpath_check",
		Description: "Check whether a target permission is reachable for the given request context. Returns granted=false with no error when access is denied.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "grantpath_explain",
		Description: "Produce the full decision trail for a target permission: every edge considered, in evaluation order, with its outcome and context.",
	}, s.handleExplain)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "grantpath_graph",
		Description: "List the permission graph: start node, all nodes, and all edges with their explanations.",
	}, s.handleGraph)
}
