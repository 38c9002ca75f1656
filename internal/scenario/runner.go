package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/restrict"
)

// Run evaluates all cases in a scenario against the built graph. Each case
// gets fresh restriction accumulators (cases are independent).
func Run(s *Scenario, built *graphcfg.Built) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		cr := evaluateCase(c, built)
		cr.Index = i + 1
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func evaluateCase(c Case, built *graphcfg.Built) CaseResult {
	cr := CaseResult{
		Target:   c.Target,
		Expected: strings.ToLower(c.Expect),
	}

	keys := restrictionKeys(c)
	var restrictions restrict.Set
	if len(keys) > 0 {
		all := built.NewRestrictions()
		restrictions = make(restrict.Set, len(keys))
		for _, key := range keys {
			acc, ok := all[key]
			if !ok {
				cr.Actual = "error"
				cr.Reason = fmt.Sprintf("unknown restriction key %q", key)
				return cr
			}
			restrictions[key] = acc
		}
	}

	from := built.Start
	if c.From != "" {
		from = graph.Node(c.From)
	}

	resultCtx, granted := built.Engine.CheckFrom(context.Background(), from, graph.Node(c.Target), c.Context, restrictions)

	cr.Actual = "deny"
	if granted {
		cr.Actual = "grant"
	}
	cr.Reason = cr.Actual
	cr.Restrictions = restrictions.Report()

	if cr.Actual != cr.Expected {
		return cr
	}

	for key, want := range c.ExpectContext {
		got, present := resultCtx[key]
		if want == nil {
			if present {
				cr.Reason = fmt.Sprintf("context key %q = %v, expected absent", key, got)
				return cr
			}
			continue
		}
		if !present {
			cr.Reason = fmt.Sprintf("context key %q absent, expected %v", key, want)
			return cr
		}
		if !reflect.DeepEqual(got, want) {
			cr.Reason = fmt.Sprintf("context key %q = %v, expected %v", key, got, want)
			return cr
		}
	}

	for key, fields := range c.ExpectFields {
		fs, ok := restrictions[key].(*restrict.FieldSet)
		if !ok {
			cr.Reason = fmt.Sprintf("restriction %q is not a field set", key)
			return cr
		}
		for _, field := range fields {
			if !fs.Allowed(field) {
				cr.Reason = fmt.Sprintf("restriction %q missing field %q, allowed: %v", key, field, fs.Fields())
				return cr
			}
		}
	}

	cr.Passed = true
	return cr
}

// restrictionKeys merges the explicit restriction list with keys named by
// field expectations, preserving order and dropping duplicates.
func restrictionKeys(c Case) []string {
	seen := make(map[string]bool, len(c.Restrictions)+len(c.ExpectFields))
	var keys []string
	for _, key := range c.Restrictions {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for key := range c.ExpectFields {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// LoadAndRun loads a scenario YAML file, builds its graph, and runs. The
// scenario's own graph field, when set, overrides graphPath.
func LoadAndRun(path, graphPath string, reg *graphcfg.Registry) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	gp := graphPath
	if s.Graph != "" {
		gp = s.Graph
		if !filepath.IsAbs(gp) {
			gp = filepath.Join(filepath.Dir(path), s.Graph)
		}
	}

	cfg, err := graphcfg.Load(gp)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	built, err := cfg.Build(reg)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	result := Run(&s, built)
	result.File = path

	return result, nil
}

// RunAll runs several scenario files concurrently, preserving input order in
// the results.
func RunAll(ctx context.Context, paths []string, graphPath string, reg *graphcfg.Registry) ([]*RunResult, error) {
	results := make([]*RunResult, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			r, err := LoadAndRun(path, graphPath, reg)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
