package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grantpath",
	Short: "Permission graph decision engine",
	Long: "Answers allow/deny questions by walking a graph of conditionally\n" +
		"passable edges. Every grant is a concrete path from the start node\n" +
		"to the target; every decision can be explained edge by edge.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
