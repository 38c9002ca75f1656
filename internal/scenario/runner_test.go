package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/grantpath/grantpath/internal/graphcfg"
)

const passphraseGraph = `
start: public
accumulators:
  doc_fields: fieldset
edges:
  - from: public
    to: secret
    explanation: knows the passphrase
    check: key_equals
    params:
      key: passphrase
      equals: opensesame
    restrict:
      doc_fields:
        fill: allow_fields
        params:
          fields: [title, body]
  - from: secret
    to: admin
    explanation: carries an admin badge
    check: bind
    params:
      bindings:
        role: admin
`

func buildGraph(t *testing.T, yamlText string) *graphcfg.Built {
	t.Helper()
	var cfg graphcfg.Config
	if err := yaml.Unmarshal([]byte(yamlText), &cfg); err != nil {
		t.Fatalf("parse graph: %v", err)
	}
	built, err := cfg.Build(graphcfg.Builtins())
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return built
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAllCasesPass(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "passphrase basics",
		Cases: []Case{
			{Target: "secret", Context: map[string]any{"passphrase": "opensesame"}, Expect: "grant"},
			{Target: "secret", Expect: "deny"},
		},
	}

	result := Run(s, built)
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 2 {
		t.Errorf("expected 2 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "wrong expectation",
		Cases: []Case{
			{Target: "secret", Expect: "grant"},
		},
	}

	result := Run(s, built)
	if result.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", result.Failed)
	}
	if result.Passed != 0 {
		t.Errorf("expected 0 passed, got %d", result.Passed)
	}
}

func TestExpectContextChecked(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "context assertions",
		Cases: []Case{
			{
				Target:        "admin",
				Context:       map[string]any{"passphrase": "opensesame"},
				Expect:        "grant",
				ExpectContext: map[string]any{"role": "admin", "passphrase": "opensesame"},
			},
			{
				Target:        "admin",
				Context:       map[string]any{"passphrase": "opensesame"},
				Expect:        "grant",
				ExpectContext: map[string]any{"role": "intruder"},
			},
		},
	}

	result := Run(s, built)
	if result.Passed != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 pass and 1 fail, got %d/%d", result.Passed, result.Failed)
	}
	if result.Cases[1].Passed {
		t.Error("expected context mismatch to fail the case")
	}
	if result.Cases[1].Reason == "" || result.Cases[1].Reason == "grant" {
		t.Errorf("expected mismatch reason, got %q", result.Cases[1].Reason)
	}
}

func TestExpectContextNullMeansAbsent(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "absence assertion",
		Cases: []Case{
			{
				Target:        "secret",
				Context:       map[string]any{"passphrase": "opensesame"},
				Expect:        "grant",
				ExpectContext: map[string]any{"role": nil},
			},
			{
				Target:        "admin",
				Context:       map[string]any{"passphrase": "opensesame"},
				Expect:        "grant",
				ExpectContext: map[string]any{"role": nil},
			},
		},
	}

	result := Run(s, built)
	if !result.Cases[0].Passed {
		t.Errorf("role is not bound at secret, expected pass: %+v", result.Cases[0])
	}
	if result.Cases[1].Passed {
		t.Error("role is bound at admin, expected absence assertion to fail")
	}
}

func TestExpectFieldsChecked(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "restriction fields",
		Cases: []Case{
			{
				Target:       "secret",
				Context:      map[string]any{"passphrase": "opensesame"},
				Expect:       "grant",
				ExpectFields: map[string][]string{"doc_fields": {"title", "body"}},
			},
			{
				Target:       "secret",
				Context:      map[string]any{"passphrase": "opensesame"},
				Expect:       "grant",
				ExpectFields: map[string][]string{"doc_fields": {"salary"}},
			},
		},
	}

	result := Run(s, built)
	if !result.Cases[0].Passed {
		t.Errorf("expected granted fields to pass: %+v", result.Cases[0])
	}
	if result.Cases[1].Passed {
		t.Error("expected missing field to fail the case")
	}
}

func TestFreshRestrictionsPerCase(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "isolation",
		Cases: []Case{
			{
				Target:       "secret",
				Context:      map[string]any{"passphrase": "opensesame"},
				Expect:       "grant",
				Restrictions: []string{"doc_fields"},
			},
			{
				Target:       "secret",
				Context:      map[string]any{"passphrase": "wrong"},
				Expect:       "deny",
				Restrictions: []string{"doc_fields"},
			},
		},
	}

	result := Run(s, built)
	if result.Failed != 0 {
		t.Fatalf("expected all cases to pass, got %+v", result.Cases)
	}

	granted, ok := result.Cases[0].Restrictions["doc_fields"].([]string)
	if !ok || len(granted) != 2 {
		t.Errorf("expected 2 fields collected in first case, got %v", result.Cases[0].Restrictions)
	}
	denied, ok := result.Cases[1].Restrictions["doc_fields"].([]string)
	if !ok || len(denied) != 0 {
		t.Errorf("expected no fields leaked into second case, got %v", result.Cases[1].Restrictions)
	}
}

func TestUnknownRestrictionKeyFailsCase(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "bad key",
		Cases: []Case{
			{Target: "secret", Expect: "deny", Restrictions: []string{"no_such_key"}},
		},
	}

	result := Run(s, built)
	if result.Failed != 1 {
		t.Fatalf("expected failure, got %+v", result.Cases)
	}
	if result.Cases[0].Actual != "error" {
		t.Errorf("expected error outcome, got %q", result.Cases[0].Actual)
	}
}

func TestLoadAndRunFromFile(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeScenario(t, dir, "graph.yaml", passphraseGraph)
	scenarioPath := writeScenario(t, dir, "test.yaml", `
name: "file test"
cases:
  - target: secret
    context: {passphrase: opensesame}
    expect: grant
`)

	result, err := LoadAndRun(scenarioPath, graphPath, graphcfg.Builtins())
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d", result.Failed)
	}
	if result.File != scenarioPath {
		t.Errorf("expected file path set, got %q", result.File)
	}
}

func TestScenarioGraphOverridesRunnerGraph(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "open.yaml", `
start: public
edges:
  - from: public
    to: secret
    explanation: anyone may pass
    check: always
`)
	scenarioPath := writeScenario(t, dir, "test.yaml", `
name: "own graph"
graph: open.yaml
cases:
  - target: secret
    expect: grant
`)

	// The runner-level graph requires a passphrase; the scenario's own graph
	// must win.
	defaultGraph := writeScenario(t, dir, "default.yaml", passphraseGraph)
	result, err := LoadAndRun(scenarioPath, defaultGraph, graphcfg.Builtins())
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Errorf("expected scenario graph to be used, got %+v", result.Cases)
	}
}

func TestInvalidScenarioYAML(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeScenario(t, dir, "graph.yaml", passphraseGraph)
	bad := writeScenario(t, dir, "bad.yaml", ":::not yaml\x00")

	_, err := LoadAndRun(bad, graphPath, graphcfg.Builtins())
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEmptyCasesList(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	result := Run(&Scenario{Name: "empty"}, built)
	if result.Total != 0 || result.Failed != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestCaseResultFieldsPopulated(t *testing.T) {
	built := buildGraph(t, passphraseGraph)

	s := &Scenario{
		Name: "fields check",
		Cases: []Case{
			{Target: "secret", Context: map[string]any{"passphrase": "opensesame"}, Expect: "grant"},
		},
	}

	result := Run(s, built)
	if len(result.Cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(result.Cases))
	}
	c := result.Cases[0]
	if c.Index != 1 {
		t.Errorf("index: got %d", c.Index)
	}
	if c.Target != "secret" {
		t.Errorf("target: got %s", c.Target)
	}
	if c.Expected != "grant" || c.Actual != "grant" {
		t.Errorf("expected/actual: got %s/%s", c.Expected, c.Actual)
	}
	if !c.Passed {
		t.Error("expected passed=true")
	}
	if c.Reason == "" {
		t.Error("reason should not be empty")
	}
}

func TestRunAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeScenario(t, dir, "graph.yaml", passphraseGraph)
	writeScenario(t, dir, "a.yaml", `
name: "scenario A"
cases:
  - target: secret
    context: {passphrase: opensesame}
    expect: grant
`)
	writeScenario(t, dir, "b.yaml", `
name: "scenario B"
cases:
  - target: secret
    expect: deny
`)

	matches, err := filepath.Glob(filepath.Join(dir, "[ab].yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	results, err := RunAll(context.Background(), matches, graphPath, graphcfg.Builtins())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "scenario A" || results[1].Name != "scenario B" {
		t.Errorf("expected input order preserved, got %q then %q", results[0].Name, results[1].Name)
	}
	for _, r := range results {
		if r.Failed != 0 {
			t.Errorf("scenario %s failed: %+v", r.Name, r.Cases)
		}
	}
}

func TestRunAllPropagatesLoadError(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeScenario(t, dir, "graph.yaml", passphraseGraph)

	_, err := RunAll(context.Background(), []string{filepath.Join(dir, "missing.yaml")}, graphPath, graphcfg.Builtins())
	if err == nil {
		t.Error("expected error for missing scenario file")
	}
}
