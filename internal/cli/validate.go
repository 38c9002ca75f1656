package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/graphcfg"
)

var validateGraph string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateGraph, "graph", "", "Path to graph YAML (default ~/.grantpath/graph.yaml)")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the graph config loads and every node is reachable",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	graphCfg, graphHash, err := graphcfg.LoadWithHash(validateGraph)
	if err != nil {
		return err
	}
	built, err := graphCfg.Build(graphcfg.Builtins())
	if err != nil {
		return err
	}

	nodes := built.Graph.Nodes()
	fmt.Printf("graph ok: %d nodes, %d edges\n", len(nodes), built.Graph.EdgeCount())
	fmt.Printf("start:    %s\n", built.Start)
	fmt.Printf("hash:     %s\n", graphHash)

	unreachable := 0
	for _, node := range nodes {
		if node == built.Start {
			continue
		}
		if !built.Graph.CanReach(built.Start, node) {
			fmt.Fprintf(os.Stderr, "warning: node %q is unreachable from %s\n", node, built.Start)
			unreachable++
		}
	}
	if unreachable > 0 {
		fmt.Printf("%d node(s) unreachable from the start node\n", unreachable)
	}
	return nil
}
