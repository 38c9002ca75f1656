package grantpath

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Require returns an http.Handler that checks target on each request
// before passing to next. Denied requests receive a 403 with a JSON body.
func (c *Client) Require(target string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := c.Decide(r.Context(), target, c.cfg.contextFn(r))

		if !d.Granted {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"granted":     false,
				"target":      target,
				"decision_id": d.DecisionID,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// contextFromRequest is the default context function: method, path and
// remote host, lowercased the way graph files expect.
func contextFromRequest(r *http.Request) Context {
	remote := r.RemoteAddr
	if h, _, err := net.SplitHostPort(remote); err == nil {
		remote = h
	}
	return Context{
		"method": strings.ToLower(r.Method),
		"path":   r.URL.Path,
		"remote": remote,
	}
}
