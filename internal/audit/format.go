package audit

import (
	"fmt"
	"strings"
	"time"
)

// FormatTail renders decision entries as a human-readable table, one line
// per decision.
func FormatTail(entries []Entry) string {
	if len(entries) == 0 {
		return "No decisions recorded.\n"
	}

	var b strings.Builder
	for _, e := range entries {
		verdict := "DENY"
		if e.Granted {
			verdict = "GRANT"
		}
		b.WriteString(fmt.Sprintf("%-10s %-6s %-5s %-24s %s\n",
			formatTimeOnly(e.Timestamp),
			e.Source,
			verdict,
			fmt.Sprintf("%s -> %s", e.From, e.Target),
			e.DecisionID))
	}
	return b.String()
}

// FormatVerify renders a verification result as one line of text.
func FormatVerify(result VerifyResult) string {
	if result.Valid {
		return fmt.Sprintf("chain intact: %d entries\n", result.Lines)
	}
	if result.ErrorLine > 0 {
		return fmt.Sprintf("chain BROKEN at line %d: %s\n", result.ErrorLine, result.Error)
	}
	return fmt.Sprintf("chain BROKEN: %s\n", result.Error)
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}
