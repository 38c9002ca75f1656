package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/scenario"
)

var (
	testScenario string
	testGraph    string
	testFormat   string
)

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Scenario file or glob (required)")
	testCmd.Flags().StringVar(&testGraph, "graph", "", "Path to graph YAML (default ~/.grantpath/graph.yaml)")
	testCmd.Flags().StringVar(&testFormat, "format", "text", "Output format: text or json")
	testCmd.MarkFlagRequired("scenario")
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run scenario files against the graph",
	Long: "Loads YAML scenario files and checks each case's expected decision,\n" +
		"context bindings and collected restrictions against the live graph.\n\n" +
		"Exit code 0 when every case passes, 1 otherwise.",
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	paths, err := filepath.Glob(testScenario)
	if err != nil {
		return fmt.Errorf("bad scenario glob %q: %w", testScenario, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenario files match %q", testScenario)
	}
	sort.Strings(paths)

	results, err := scenario.RunAll(context.Background(), paths, testGraph, graphcfg.Builtins())
	if err != nil {
		return err
	}

	switch testFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "text":
		fmt.Print(scenario.FormatText(results))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", testFormat)
	}

	for _, r := range results {
		if r.Failed > 0 {
			os.Exit(1)
		}
	}
	return nil
}
