package grantpath

import (
	"net/http"

	"github.com/grantpath/grantpath/internal/graphcfg"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	graphPath    string
	start        string
	auditLogPath string
	registry     *graphcfg.Registry
	contextFn    func(*http.Request) Context
}

// WithGraph sets the path to the graph YAML file.
func WithGraph(path string) Option {
	return func(c *clientConfig) { c.graphPath = path }
}

// WithStart overrides the graph's start node for all checks.
func WithStart(node string) Option {
	return func(c *clientConfig) { c.start = node }
}

// WithAuditLog records every decision to a hash-chained JSONL log.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) { c.auditLogPath = path }
}

// WithRegistry supplies a registry with custom checks, fills or
// accumulators on top of the builtins.
func WithRegistry(reg *graphcfg.Registry) Option {
	return func(c *clientConfig) { c.registry = reg }
}

// WithContextFunc sets how Require derives decision context from an HTTP
// request. The default binds method, path and remote host.
func WithContextFunc(fn func(*http.Request) Context) Option {
	return func(c *clientConfig) { c.contextFn = fn }
}
