package journal

import (
	"fmt"
	"strings"
)

// FormatDecisions renders decisions as an aligned table for terminal output.
func FormatDecisions(decisions []Decision) string {
	if len(decisions) == 0 {
		return "no decisions recorded\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-13s %-6s %-9s %-24s %s\n", "TIME", "GRANT", "SOURCE", "PATH", "ID")
	for _, d := range decisions {
		verdict := "DENY"
		if d.Granted {
			verdict = "GRANT"
		}
		path := fmt.Sprintf("%s -> %s", d.From, d.Target)
		fmt.Fprintf(&b, "%-13s %-6s %-9s %-24s %s\n", formatTimeOnly(d.Timestamp), verdict, d.Source, path, d.ID)
	}
	return b.String()
}

// FormatStats renders a one-line journal summary.
func FormatStats(s Stats) string {
	return fmt.Sprintf("%d decisions: %d granted, %d denied\n", s.Total, s.Granted, s.Denied)
}

func formatTimeOnly(ts string) string {
	if idx := strings.Index(ts, "T"); idx >= 0 && idx+1 < len(ts) {
		return strings.TrimSuffix(ts[idx+1:], "Z")
	}
	return ts
}
