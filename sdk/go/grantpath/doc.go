// Package grantpath provides in-process authorization decisions for Go
// services. It loads a permission graph, answers reachability checks against
// request context, and guards functions and HTTP handlers behind named
// targets. A denial is an answer, not an error.
//
// Usage:
//
//	gp, err := grantpath.New(grantpath.WithGraph("graph.yaml"))
//	d := gp.Decide(ctx, "billing.export", grantpath.Context{"role": "admin"})
//	if d.Granted {
//	    export(d.Context)
//	}
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/grantpath/grantpath/sdk/go/grantpath.
package grantpath
