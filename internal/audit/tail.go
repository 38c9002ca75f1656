package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// TailFilter selects which decision entries a Tail call returns.
type TailFilter struct {
	Last       int    // keep only the most recent N entries; 0 = all
	Target     string // only decisions for this target node; "" = all
	OnlyDenied bool   // only denied decisions
}

// Tail reads the decision log and returns the entries matching the filter,
// oldest first. Malformed lines are skipped; Verify is the tool for
// detecting them.
func Tail(path string, filter TailFilter) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	defer f.Close()

	var out []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if filter.Target != "" && entry.Target != filter.Target {
			continue
		}
		if filter.OnlyDenied && entry.Granted {
			continue
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read decision log: %w", err)
	}

	if filter.Last > 0 && len(out) > filter.Last {
		out = out[len(out)-filter.Last:]
	}
	return out, nil
}
