package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantpath/grantpath/internal/audit"
	"github.com/grantpath/grantpath/internal/graph"
	"github.com/grantpath/grantpath/internal/graphcfg"
	"github.com/grantpath/grantpath/internal/journal"
	"github.com/grantpath/grantpath/internal/restrict"
	"github.com/grantpath/grantpath/internal/scope"
	"github.com/grantpath/grantpath/internal/trail"
)

var (
	checkGraph    string
	checkFrom     string
	checkContext  string
	checkSet      []string
	checkRestrict []string
	checkAuditLog string
	checkJournal  string
	checkJSON     bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkGraph, "graph", "", "Path to graph YAML (default ~/.grantpath/graph.yaml)")
	checkCmd.Flags().StringVar(&checkFrom, "from", "", "Origin node (default: the graph's start node)")
	checkCmd.Flags().StringVar(&checkContext, "context", "", "Path to a YAML/JSON context document")
	checkCmd.Flags().StringArrayVar(&checkSet, "set", nil, "Context binding key=value (repeatable)")
	checkCmd.Flags().StringArrayVar(&checkRestrict, "restrict", nil, "Restriction key to collect (repeatable)")
	checkCmd.Flags().StringVar(&checkAuditLog, "audit-log", "", "Record the decision to this hash-chained JSONL log")
	checkCmd.Flags().StringVar(&checkJournal, "journal", "", "Record the decision to this SQLite journal")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Emit the decision as JSON")
}

var checkCmd = &cobra.Command{
	Use:   "check <target>",
	Short: "Ask whether a target permission is granted",
	Long: "Walks the permission graph from the start node (or --from) toward the\n" +
		"target, evaluating edge checks against the request context.\n\n" +
		"Exit code 0 on grant, 1 on denial. A denial is an answer, not an error.",
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	target := args[0]

	graphCfg, graphHash, err := graphcfg.LoadWithHash(checkGraph)
	if err != nil {
		return err
	}
	built, err := graphCfg.Build(graphcfg.Builtins())
	if err != nil {
		return err
	}

	seed, err := assembleContext(checkContext, checkSet)
	if err != nil {
		return err
	}

	var restrictions restrict.Set
	if len(checkRestrict) > 0 {
		all := built.NewRestrictions()
		restrictions = make(restrict.Set, len(checkRestrict))
		for _, key := range checkRestrict {
			acc, ok := all[key]
			if !ok {
				return fmt.Errorf("unknown restriction key %q", key)
			}
			restrictions[key] = acc
		}
	}

	from := built.Start
	if checkFrom != "" {
		from = graph.Node(checkFrom)
	}

	start := time.Now()
	resultCtx, granted := built.Engine.CheckFrom(context.Background(), from, graph.Node(target), seed, restrictions)
	elapsed := time.Since(start)

	decisionID := trail.NewDecisionID()
	if err := recordCheck(decisionID, string(from), target, granted, graphHash, seed, elapsed); err != nil {
		return err
	}

	if checkJSON {
		out, _ := json.MarshalIndent(map[string]any{
			"granted":      granted,
			"context":      resultCtx,
			"restrictions": restrictions.Report(),
			"decision_id":  decisionID,
			"graph_hash":   graphHash,
		}, "", "  ")
		fmt.Println(string(out))
	} else {
		printDecision(target, granted, resultCtx, restrictions)
	}

	if !granted {
		os.Exit(1)
	}
	return nil
}

func recordCheck(decisionID, from, target string, granted bool, graphHash string, seed scope.Bindings, elapsed time.Duration) error {
	if checkAuditLog != "" {
		log, err := audit.Open(checkAuditLog)
		if err != nil {
			return err
		}
		defer log.Close()
		if err := log.Record(audit.Entry{
			DecisionID: decisionID,
			Source:     "cli",
			From:       from,
			Target:     target,
			Granted:    granted,
			GraphHash:  graphHash,
		}); err != nil {
			return err
		}
	}
	if checkJournal != "" {
		jnl, err := journal.Open(checkJournal)
		if err != nil {
			return err
		}
		defer jnl.Close()
		ctxJSON := "{}"
		if len(seed) > 0 {
			if raw, err := json.Marshal(seed); err == nil {
				ctxJSON = string(raw)
			}
		}
		if err := jnl.Record(journal.Decision{
			ID:        decisionID,
			Source:    "cli",
			From:      from,
			Target:    target,
			Granted:   granted,
			Context:   ctxJSON,
			ElapsedMS: elapsed.Milliseconds(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func printDecision(target string, granted bool, resultCtx scope.Bindings, restrictions restrict.Set) {
	if !granted {
		fmt.Printf("DENY  %s\n", target)
		return
	}
	fmt.Printf("GRANT %s\n", target)

	if len(resultCtx) > 0 {
		keys := make([]string, 0, len(resultCtx))
		for k := range resultCtx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("context:")
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, resultCtx[k])
		}
	}

	report := restrictions.Report()
	if len(report) > 0 {
		keys := make([]string, 0, len(report))
		for k := range report {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("restrictions:")
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, report[k])
		}
	}
}

// assembleContext merges a context document with --set overrides, the
// overrides winning.
func assembleContext(file string, sets []string) (scope.Bindings, error) {
	seed, err := graphcfg.LoadContext(file)
	if err != nil {
		return nil, err
	}
	overlay, err := graphcfg.ParseAssignments(sets)
	if err != nil {
		return nil, err
	}
	for k, v := range overlay {
		seed[k] = v
	}
	return seed, nil
}
