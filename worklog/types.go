// Package worklog holds the shared vocabulary of the reconciliation core:
// work items, ledger entries, duration allocation and the capability
// interfaces remote services are consumed through.
package worklog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worklog-engine/schedule"
)

// =============================================================================
// WORK ITEMS
// =============================================================================

// WorkItem is an assignable task owned by the external tracker. The core
// only reads it.
type WorkItem struct {
	Key   string
	Title string
	Cycle string // raw cycle field from the tracker; empty when absent
}

// ItemDetail is the long form of a work item, fetched on demand for
// description generation. Annotations are in chronological order, oldest
// first, as the tracker returns them.
type ItemDetail struct {
	Title             string
	Description       string
	RecentAnnotations []string
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// Origin tags who an entry belongs to in the reconciliation model. It is the
// sole protection signal: overhead entries are never deleted by a routine
// pass.
type Origin string

const (
	OriginRegular  Origin = "regular"
	OriginOverhead Origin = "overhead"
)

// LedgerEntry is a dated, duration-stamped record attributed to a work item
// in the time-ledger service. ID is assigned remotely and empty until the
// entry is created.
type LedgerEntry struct {
	ID          string
	ItemKey     string
	Date        schedule.Date
	Duration    time.Duration
	Description string
	Origin      Origin
}

// TotalDuration sums entry durations.
func TotalDuration(entries []LedgerEntry) time.Duration {
	var total time.Duration
	for _, e := range entries {
		total += e.Duration
	}
	return total
}

// Partition splits entries into overhead and regular by origin tag.
func Partition(entries []LedgerEntry) (overhead, regular []LedgerEntry) {
	for _, e := range entries {
		if e.Origin == OriginOverhead {
			overhead = append(overhead, e)
		} else {
			regular = append(regular, e)
		}
	}
	return overhead, regular
}

// LoggedKeys returns the set of item keys that already have entries.
func LoggedKeys(entries []LedgerEntry) map[string]bool {
	keys := make(map[string]bool, len(entries))
	for _, e := range entries {
		keys[e.ItemKey] = true
	}
	return keys
}

// =============================================================================
// HOURS RENDERING
// =============================================================================

// Hours converts a duration to decimal hours for weights and reports.
func Hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600))
}

// HoursToDuration converts decimal hours to a whole-second duration.
func HoursToDuration(hours decimal.Decimal) time.Duration {
	secs := hours.Mul(decimal.NewFromInt(3600)).IntPart()
	return time.Duration(secs) * time.Second
}

// FormatHours renders a duration as "6.5h" style text for reports.
func FormatHours(d time.Duration) string {
	return Hours(d).Round(2).String() + "h"
}
