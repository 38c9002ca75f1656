// Package graphcfg loads permission-graph declarations from YAML and turns
// them into a built graph plus engine configuration. Predicates and
// restriction fills are referenced by registered name so graph files stay
// declarative; embedders register their own domain predicates next to the
// builtins.
package graphcfg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NodeList accepts either a single node name or a list of names in YAML,
// mirroring edge declarations that fan out from or into a set of nodes.
type NodeList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *NodeList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*n = NodeList{s}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*n = NodeList(list)
	return nil
}

// FillDecl names a registered restriction fill and its parameters.
type FillDecl struct {
	Fill   string         `yaml:"fill"`
	Params map[string]any `yaml:"params"`
}

// EdgeDecl is one edge declaration as authored. From and To may each name
// one node or several; the build expands the cartesian product.
type EdgeDecl struct {
	From        NodeList            `yaml:"from"`
	To          NodeList            `yaml:"to"`
	Explanation string              `yaml:"explanation"`
	Check       string              `yaml:"check"`
	Params      map[string]any      `yaml:"params"`
	Restrict    map[string]FillDecl `yaml:"restrict"`
}

// Config is a parsed graph file.
type Config struct {
	Start        string            `yaml:"start"`
	Accumulators map[string]string `yaml:"accumulators"`
	Edges        []EdgeDecl        `yaml:"edges"`
}

// Load reads a graph file. Empty path falls back to ~/.grantpath/graph.yaml.
// A missing file is an error: an authorization graph is never defaulted.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads a graph file and returns the SHA-256 of its raw bytes,
// for decision provenance in audit records.
func LoadWithHash(path string) (*Config, string, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read graph file: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse graph file: %w", err)
	}
	return &cfg, hash, nil
}

// ResolvePath expands an empty path to the default graph location.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no graph path given and no home directory: %w", err)
	}
	return filepath.Join(home, ".grantpath", "graph.yaml"), nil
}

// DefaultGraphYAML returns a commented starter graph for the init command.
func DefaultGraphYAML() string {
	return `# grantpath permission graph
# Generated by: grantpath init
#
# A check asks: can the start node reach the target node, given the
# request context? Every hop must either have no check (always passable)
# or a passing one. Denial is a normal answer, never an error.

# Every traversal begins here unless --from overrides it.
start: public

# Accumulators collected during checks run with --restrict.
#   fieldset      flat set of allowed field names
#   fields_by_id  allowed field names per record id
accumulators:
  fields: fieldset

# Edges, evaluated in declaration order on merge conflicts.
# Fields:
#   from / to:    node name, or list of node names (expanded pairwise)
#   explanation:  shown in explain trails and audit records
#   check:        registered predicate name (omit for always-passable)
#   params:       parameters for the check
#   restrict:     accumulator key -> {fill, params}, run on granted paths
edges:
  - from: public
    to: secret
    explanation: caller presented the shared passphrase
    check: key_equals
    params: {key: passphrase, equals: opensesame}
    restrict:
      fields:
        fill: allow_fields
        params: {fields: [title, body]}

  - from: secret
    to: admin
    explanation: passphrase holders administer this demo
`
}
