package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/server"
)

var (
	serveAddr     string
	serveGraph    string
	serveAuditLog string
	serveJournal  string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8461", "Listen address")
	serveCmd.Flags().StringVar(&serveGraph, "graph", "", "Path to graph YAML (default ~/.grantpath/graph.yaml)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Record decisions to this hash-chained JSONL log")
	serveCmd.Flags().StringVar(&serveJournal, "journal", "", "Record decisions to this SQLite journal")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve decisions over HTTP",
	Long: "Starts the HTTP decision endpoint. The graph file is watched and\n" +
		"reloaded on change; a broken edit keeps the last good graph running.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.New(server.Config{
		Addr:         serveAddr,
		GraphPath:    serveGraph,
		AuditLogPath: serveAuditLog,
		JournalPath:  serveJournal,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := startReloader(ctx, srv.ReloadGraph, serveGraph); err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down decision server...")
		cancel()
		srv.GracefulStop()
	}()

	fmt.Fprintf(os.Stderr, "grantpath decision server listening on %s\n", serveAddr)
	return srv.Serve()
}

// startReloader watches the graph file and calls reload on change.
func startReloader(ctx context.Context, reload func() error, graphPath string) error {
	resolved, err := graphcfg.ResolvePath(graphPath)
	if err != nil {
		return err
	}
	reloader, err := server.NewReloader(reload, []string{resolved})
	if err != nil {
		return err
	}
	go reloader.Run(ctx)
	return nil
}
