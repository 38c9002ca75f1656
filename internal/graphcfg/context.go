package graphcfg

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grantpath/grantpath/internal/scope"
)

// LoadContext reads a context document, the seed bindings for one check.
// YAML and JSON both parse. Empty path yields empty bindings.
func LoadContext(path string) (scope.Bindings, error) {
	if path == "" {
		return scope.Bindings{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return scope.Bindings(out), nil
}

// ParseAssignments turns key=value flags into bindings. Values parse as
// YAML scalars so `count=3` binds an int and `ok=true` a bool; anything
// unparsable stays a string.
func ParseAssignments(pairs []string) (scope.Bindings, error) {
	out := make(scope.Bindings, len(pairs))
	for _, pair := range pairs {
		key, rawVal, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context assignment %q, want key=value", pair)
		}
		var val any
		if err := yaml.Unmarshal([]byte(rawVal), &val); err != nil {
			val = rawVal
		}
		out[key] = val
	}
	return out, nil
}
