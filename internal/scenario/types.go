package scenario

// Case is one decision assertion within a scenario. Expect is "grant" or
// "deny". ExpectContext asserts result context keys after a grant; a null
// value asserts the key is absent. ExpectFields asserts fields collected
// into field-set restrictions; the named keys are collected automatically.
type Case struct {
	Target        string              `yaml:"target"`
	From          string              `yaml:"from,omitempty"`
	Context       map[string]any      `yaml:"context,omitempty"`
	Expect        string              `yaml:"expect"`
	ExpectContext map[string]any      `yaml:"expect_context,omitempty"`
	Restrictions  []string            `yaml:"restrictions,omitempty"`
	ExpectFields  map[string][]string `yaml:"expect_fields,omitempty"`
}

// Scenario is a named collection of decision assertions sharing one graph.
// Graph optionally names the graph config file, resolved relative to the
// scenario file; it overrides the runner-level graph path.
type Scenario struct {
	Name  string `yaml:"name"`
	Graph string `yaml:"graph,omitempty"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one assertion.
type CaseResult struct {
	Index        int            `json:"index"`
	Passed       bool           `json:"passed"`
	Target       string         `json:"target"`
	Expected     string         `json:"expected"`
	Actual       string         `json:"actual"`
	Reason       string         `json:"reason"`
	Restrictions map[string]any `json:"restrictions,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
