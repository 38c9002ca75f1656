// Package server exposes the decision engine over HTTP. Every decision
// endpoint answers 200 with a granted flag; a denial is a result, not an
// error. Graph rebuilds swap atomically under the server lock so in-flight
// checks always run against a consistent graph.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/grantpath/grantpath/internal/audit"
	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/journal"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
	"github.com/grantpath/grantpath/internal/trail"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	GraphPath    string
	AuditLogPath string
	JournalPath  string
	Registry     *graphcfg.Registry
}

// Server serves check, explain, and graph inspection endpoints.
type Server struct {
	mu        sync.RWMutex
	built     *graphcfg.Built
	graphHash string

	registry *graphcfg.Registry
	auditLog *audit.Log
	journal  *journal.Journal
	cfg      Config

	httpServer *http.Server
}

// New creates a server with a loaded permission graph and optional audit and
// journal sinks.
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
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Serve starts the HTTP server on the configured address. Blocks until
// stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn starts the HTTP server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	err := s.httpServer.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// GracefulStop drains in-flight requests and shuts the server down.
func (s *Server) GracefulStop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.httpServer.Shutdown(ctx)
}

// Close cleans up resources.
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

// ReloadGraph rebuilds the permission graph from disk and swaps it in.
// Called by the hot-reloader on file change. A rebuild failure keeps the
// running graph.
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

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/check", s.handleCheck)
	mux.HandleFunc("/v1/explain", s.handleExplain)
	mux.HandleFunc("/v1/graph", s.handleGraph)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) snapshot() (*graphcfg.Built, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.built, s.graphHash
}

type checkRequest struct {
	Target       string         `json:"target"`
	From         string         `json:"from,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	Restrictions []string       `json:"restrictions,omitempty"`
}

type checkResponse struct {
	Granted      bool           `json:"granted"`
	Context      map[string]any `json:"context,omitempty"`
	Restrictions map[string]any `json:"restrictions,omitempty"`
	DecisionID   string         `json:"decision_id"`
	GraphHash    string         `json:"graph_hash"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}

	built, graphHash := s.snapshot()

	var restrictions restrict.Set
	if len(req.Restrictions) > 0 {
		all := built.NewRestrictions()
		restrictions = make(restrict.Set, len(req.Restrictions))
		for _, key := range req.Restrictions {
			acc, ok := all[key]
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown restriction key %q", key))
				return
			}
			restrictions[key] = acc
		}
	}

	from := built.Start
	if req.From != "" {
		from = graph.Node(req.From)
	}

	start := time.Now()
	resultCtx, granted := built.Engine.CheckFrom(r.Context(), from, graph.Node(req.Target), req.Context, restrictions)
	elapsed := time.Since(start)

	decisionID := trail.NewDecisionID()
	s.recordDecision(decisionID, "http", string(from), req.Target, granted, graphHash, req.Context, elapsed)

	writeJSON(w, http.StatusOK, checkResponse{
		Granted:      granted,
		Context:      resultCtx,
		Restrictions: restrictions.Report(),
		DecisionID:   decisionID,
		GraphHash:    graphHash,
	})
}

type explainRequest struct {
	Target  string         `json:"target"`
	From    string         `json:"from,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

type explainResponse struct {
	Target    string             `json:"target"`
	From      string             `json:"from"`
	Granted   bool               `json:"granted"`
	Trail     []engineTrailEntry `json:"trail"`
	GraphHash string             `json:"graph_hash"`
}

// engineTrailEntry mirrors engine.TrailEntry for the wire.
type engineTrailEntry struct {
	To          string         `json:"to"`
	Explanation string         `json:"explanation"`
	CheckPassed bool           `json:"check_passed"`
	Context     map[string]any `json:"context"`
	Depth       int            `json:"depth"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}

	built, graphHash := s.snapshot()

	from := built.Start
	if req.From != "" {
		from = graph.Node(req.From)
	}

	target := graph.Node(req.Target)
	entries := built.Engine.ExplainFrom(r.Context(), from, target, req.Context)
	_, granted := built.Engine.CheckFrom(r.Context(), from, target, req.Context, nil)

	wire := make([]engineTrailEntry, len(entries))
	for i, e := range entries {
		wire[i] = engineTrailEntry{
			To:          string(e.To),
			Explanation: e.Explanation,
			CheckPassed: e.CheckPassed,
			Context:     e.Context,
			Depth:       e.Depth,
		}
	}

	writeJSON(w, http.StatusOK, explainResponse{
		Target:    req.Target,
		From:      string(from),
		Granted:   granted,
		Trail:     wire,
		GraphHash: graphHash,
	})
}

type graphResponse struct {
	Start     string        `json:"start"`
	Nodes     []string      `json:"nodes"`
	Edges     []edgeSummary `json:"edges"`
	GraphHash string        `json:"graph_hash"`
}

type edgeSummary struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Explanation string `json:"explanation"`
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	built, graphHash := s.snapshot()

	nodes := built.Graph.Nodes()
	names := make([]string, len(nodes))
	var edges []edgeSummary
	for i, node := range nodes {
		names[i] = string(node)
		for _, edge := range built.Graph.EdgesFrom(node) {
			edges = append(edges, edgeSummary{
				From:        string(edge.From),
				To:          string(edge.To),
				Explanation: edge.Explanation,
			})
		}
	}

	writeJSON(w, http.StatusOK, graphResponse{
		Start:     string(built.Start),
		Nodes:     names,
		Edges:     edges,
		GraphHash: graphHash,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, graphHash := s.snapshot()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"graph_hash": graphHash,
	})
}

func (s *Server) recordDecision(decisionID, source, from, target string, granted bool, graphHash string, seed scope.Bindings, elapsed time.Duration) {
	if s.auditLog != nil {
		s.auditLog.Record(audit.Entry{
			DecisionID: decisionID,
			Source:     source,
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
			Source:    source,
			From:      from,
			Target:    target,
			Granted:   granted,
			Context:   ctxJSON,
			ElapsedMS: elapsed.Milliseconds(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
