package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/engine"
	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/graphcfg"
)

var (
	explainGraph   string
	explainFrom    string
	explainContext string
	explainSet     []string
	explainJSON    bool
)

func init() {
	rootCmd.AddCommand(explainCmd)
	explainCmd.Flags().StringVar(&explainGraph, "graph", "", "Path to graph YAML (default ~/.grantpath/graph.yaml)")
	explainCmd.Flags().StringVar(&explainFrom, "from", "", "Origin node (default: the graph's start node)")
	explainCmd.Flags().StringVar(&explainContext, "context", "", "Path to a YAML/JSON context document")
	explainCmd.Flags().StringArrayVar(&explainSet, "set", nil, "Context binding key=value (repeatable)")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "Emit the trail as JSON")
}

var explainCmd = &cobra.Command{
	Use:   "explain <target>",
	Short: "Show every edge considered on the way to a target",
	Long: "Walks the whole graph toward the target without stopping at the first\n" +
		"grant, printing each edge in the order it was tried. Failed edges show\n" +
		"why the check did not pass.",
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	target := args[0]

	graphCfg, graphHash, err := graphcfg.LoadWithHash(explainGraph)
	if err != nil {
		return err
	}
	built, err := graphCfg.Build(graphcfg.Builtins())
	if err != nil {
		return err
	}

	seed, err := assembleContext(explainContext, explainSet)
	if err != nil {
		return err
	}

	from := built.Start
	if explainFrom != "" {
		from = graph.Node(explainFrom)
	}

	entries := built.Engine.ExplainFrom(context.Background(), from, graph.Node(target), seed)
	_, granted := built.Engine.CheckFrom(context.Background(), from, graph.Node(target), seed, nil)

	if explainJSON {
		out, _ := json.MarshalIndent(map[string]any{
			"target":     target,
			"from":       string(from),
			"granted":    granted,
			"trail":      entries,
			"graph_hash": graphHash,
		}, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("explain %s (from %s)\n\n", target, from)
	if !built.Graph.HasNode(graph.Node(target)) {
		fmt.Printf("node %q does not appear in the graph\n", target)
	} else {
		fmt.Print(formatTrail(entries))
	}
	fmt.Println()
	if granted {
		fmt.Printf("result: GRANT %s\n", target)
	} else {
		fmt.Printf("result: DENY  %s\n", target)
	}
	return nil
}

func formatTrail(entries []engine.TrailEntry) string {
	if len(entries) == 0 {
		return "no edges reach the target from here\n"
	}
	var b strings.Builder
	for _, e := range entries {
		mark := "✗"
		if e.CheckPassed {
			mark = "✓"
		}
		indent := strings.Repeat("  ", e.Depth)
		fmt.Fprintf(&b, "%s%s %s: %s\n", indent, mark, e.To, e.Explanation)
	}
	return b.String()
}
