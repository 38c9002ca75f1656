package grantpath

import (
	"fmt"

	"github.com/grantpath/grantpath/internal/engine"
)

// Context carries the request bindings a decision is evaluated against.
type Context map[string]any

// Decision is the outcome of one authorization check.
type Decision struct {
	Granted      bool
	Target       string
	From         string
	Context      Context
	Restrictions map[string]any
	DecisionID   string
	GraphHash    string
}

// Step is one attempted edge in an explanation trail.
type Step struct {
	To          string
	Explanation string
	Passed      bool
	Context     Context
	Depth       int
}

// DeniedError is returned by guarded functions and middleware when the
// graph denies the target.
type DeniedError struct {
	Target     string
	From       string
	DecisionID string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("grantpath denied %s", e.Target)
}

// toSteps converts engine trail entries to SDK steps.
func toSteps(entries []engine.TrailEntry) []Step {
	steps := make([]Step, len(entries))
	for i, e := range entries {
		steps[i] = Step{
			To:          string(e.To),
			Explanation: e.Explanation,
			Passed:      e.CheckPassed,
			Context:     Context(e.Context),
			Depth:       e.Depth,
		}
	}
	return steps
}
