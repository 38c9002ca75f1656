package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	grantmcp "github.com/grantpath/grantpath/internal/mcp"
)

var (
	mcpGraph    string
	mcpAuditLog string
	mcpJournal  string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpGraph, "graph", "", "Path to graph YAML (default ~/.grantpath/graph.yaml)")
	mcpCmd.Flags().StringVar(&mcpAuditLog, "audit-log", "", "Record decisions to this hash-chained JSONL log")
	mcpCmd.Flags().StringVar(&mcpJournal, "journal", "", "Record decisions to this SQLite journal")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs grantpath as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the tools: grantpath_check, grantpath_explain, grantpath_graph.\n" +
		"stdout carries the protocol; diagnostics go to stderr.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := grantmcp.New(grantmcp.Config{
		GraphPath:    mcpGraph,
		AuditLogPath: mcpAuditLog,
		JournalPath:  mcpJournal,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := startReloader(ctx, srv.ReloadGraph, mcpGraph); err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "grantpath MCP server running on stdio")
	return srv.Run(ctx)
}
