package grantpath

import (
	"context"
)

// GuardedFunc is the function signature that Wrap guards. The context
// argument carries the request bindings the decision is made against.
type GuardedFunc func(ctx context.Context, reqCtx Context) (any, error)

// Wrap returns a GuardedFunc that checks target before calling fn.
// If the graph denies target, fn is not called and a *DeniedError is
// returned carrying the decision id for audit correlation.
func (c *Client) Wrap(target string, fn GuardedFunc) GuardedFunc {
	return func(ctx context.Context, reqCtx Context) (any, error) {
		d := c.Decide(ctx, target, reqCtx)
		if !d.Granted {
			return nil, &DeniedError{
				Target:     target,
				From:       d.From,
				DecisionID: d.DecisionID,
			}
		}
		return fn(ctx, reqCtx)
	}
}
