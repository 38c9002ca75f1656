package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/audit"
)

var (
	auditTailLast   int
	auditTailTarget string
	auditTailDenied bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&auditTailLast, "last", "n", 20, "Number of entries to show")
	auditTailCmd.Flags().StringVar(&auditTailTarget, "target", "", "Only entries for this target")
	auditTailCmd.Flags().BoolVar(&auditTailDenied, "denied", false, "Only denied decisions")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify the audit log's hash chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := audit.Verify(args[0])
		fmt.Print(audit.FormatVerify(result))
		if !result.Valid {
			os.Exit(1)
		}
		return nil
	},
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := audit.Tail(args[0], audit.TailFilter{
			Last:       auditTailLast,
			Target:     auditTailTarget,
			OnlyDenied: auditTailDenied,
		})
		if err != nil {
			return err
		}
		fmt.Print(audit.FormatTail(entries))
		return nil
	},
}
