package worklog

import (
	"fmt"
	"strings"
)

// Description generation rules for ledger entries.
const (
	summaryMaxLineLen = 120
	summaryMaxLines   = 3
	summaryMinNote    = 5 // annotation first-lines at or below this length are noise
)

// Summarize builds a short ledger description from an item's detail: the
// first sentence of its description (or its title when empty), then the
// first lines of its most recent annotations, newest first, up to three
// lines in total. Every line is truncated at 120 characters. Falls back to
// "Worked on <key>" when nothing usable exists.
func Summarize(itemKey string, detail ItemDetail) string {
	var lines []string

	if desc := strings.TrimSpace(detail.Description); desc != "" {
		sentence := strings.TrimSpace(strings.SplitN(desc, ".", 2)[0])
		if sentence != "" {
			lines = append(lines, truncateLine(sentence))
		}
	}
	if len(lines) == 0 && strings.TrimSpace(detail.Title) != "" {
		lines = append(lines, truncateLine(strings.TrimSpace(detail.Title)))
	}

	for i := len(detail.RecentAnnotations) - 1; i >= 0; i-- {
		if len(lines) >= summaryMaxLines {
			break
		}
		first := strings.TrimSpace(strings.SplitN(detail.RecentAnnotations[i], "\n", 2)[0])
		if len(first) > summaryMinNote {
			lines = append(lines, truncateLine(first))
		}
	}

	if len(lines) == 0 {
		return fmt.Sprintf("Worked on %s", itemKey)
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string) string {
	if len(s) > summaryMaxLineLen {
		return s[:summaryMaxLineLen-3] + "..."
	}
	return s
}
