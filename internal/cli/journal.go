package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/journal"
)

var (
	journalTarget string
	journalSource string
	journalDenied bool
	journalLast   int
	journalSince  time.Duration
	journalStats  bool
	journalJSON   bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().StringVar(&journalTarget, "target", "", "Only decisions for this target")
	journalCmd.Flags().StringVar(&journalSource, "source", "", "Only decisions from this source (cli, http, mcp)")
	journalCmd.Flags().BoolVar(&journalDenied, "denied", false, "Only denied decisions")
	journalCmd.Flags().IntVarP(&journalLast, "last", "n", 20, "Number of decisions to show")
	journalCmd.Flags().DurationVar(&journalSince, "since", 0, "Only decisions newer than this (e.g. 1h, 30m)")
	journalCmd.Flags().BoolVar(&journalStats, "stats", false, "Show grant/deny counts instead of rows")
	journalCmd.Flags().BoolVar(&journalJSON, "json", false, "Emit JSON")
}

var journalCmd = &cobra.Command{
	Use:   "journal <path>",
	Short: "Query the SQLite decision journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournal,
}

func runJournal(cmd *cobra.Command, args []string) error {
	jnl, err := journal.Open(args[0])
	if err != nil {
		return err
	}
	defer jnl.Close()

	if journalStats {
		stats, err := jnl.Summarize()
		if err != nil {
			return err
		}
		if journalJSON {
			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		fmt.Print(journal.FormatStats(stats))
		return nil
	}

	filter := journal.Filter{
		Target:     journalTarget,
		Source:     journalSource,
		OnlyDenied: journalDenied,
		Limit:      journalLast,
	}
	if journalSince > 0 {
		filter.Since = time.Now().UTC().Add(-journalSince)
	}

	decisions, err := jnl.Query(filter)
	if err != nil {
		return err
	}
	if journalJSON {
		out, _ := json.MarshalIndent(decisions, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Print(journal.FormatDecisions(decisions))
	return nil
}
