package timesheet

import (
	"fmt"
	"io"
	"time"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// RUN RESULTS
// =============================================================================

// DayStatus tags one date's outcome in a run report.
type DayStatus string

const (
	StatusComplete           DayStatus = "complete"
	StatusReconciled         DayStatus = "reconciled"
	StatusOffDay             DayStatus = "off-day"
	StatusLeaveLogged        DayStatus = "leave-logged"
	StatusBackfilledItems    DayStatus = "backfilled (items)"
	StatusBackfilledCalendar DayStatus = "backfilled (calendar)"
	StatusBackfilledOverhead DayStatus = "backfilled (overhead)"
	StatusFuture             DayStatus = "future"
	StatusSkipped            DayStatus = "skipped"
)

// DaySummary is the per-date outcome: what existed, what was created, and
// every warning surfaced along the way. No entry is ever silently lost.
type DaySummary struct {
	Date         schedule.Date
	Status       DayStatus
	Reason       string // classification reason, for off days
	Existing     time.Duration
	Added        time.Duration
	DeletedCount int
	Created      []worklog.LedgerEntry
	Warnings     []string
}

func (s *DaySummary) Warn(msg string) { s.Warnings = append(s.Warnings, msg) }

func (s *DaySummary) CreatedCount() int { return len(s.Created) }

// PerTarget is the created-entry breakdown as (target, duration) pairs.
func (s *DaySummary) PerTarget() []worklog.Allocation {
	out := make([]worklog.Allocation, 0, len(s.Created))
	for _, entry := range s.Created {
		out = append(out, worklog.Allocation{Target: entry.ItemKey, Duration: entry.Duration})
	}
	return out
}

// Report is a verify run over a date range.
type Report struct {
	From, To schedule.Date
	Days     []DaySummary

	// Expected is the summed daily target over working days in range.
	Expected time.Duration
	Existing time.Duration
	Added    time.Duration
}

// Actual is everything on the ledger after the run.
func (r Report) Actual() time.Duration { return r.Existing + r.Added }

// Shortfall is how far the range still sits under its expected total.
func (r Report) Shortfall() time.Duration {
	if gap := r.Expected - r.Actual(); gap > 0 {
		return gap
	}
	return 0
}

// MonthSubmission is the outcome of a period submission attempt.
type MonthSubmission struct {
	Period    string
	Expected  time.Duration
	Actual    time.Duration
	Submitted bool
	Reason    string // why submission did not happen
}

func (m MonthSubmission) Shortfall() time.Duration {
	if gap := m.Expected - m.Actual; gap > 0 {
		return gap
	}
	return 0
}

// =============================================================================
// TEXT RENDERING
// =============================================================================

// RenderReport prints a verify report as a day-by-day table.
func RenderReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "Verification %s to %s\n\n", r.From, r.To)
	fmt.Fprintf(w, "%-10s %-12s %-24s %-10s %-10s\n", "Day", "Date", "Status", "Existing", "Added")
	for _, day := range r.Days {
		fmt.Fprintf(w, "%-10s %-12s %-24s %-10s %-10s\n",
			day.Date.Weekday().String(), day.Date, string(day.Status),
			worklog.FormatHours(day.Existing), worklog.FormatHours(day.Added))
		for _, warning := range day.Warnings {
			fmt.Fprintf(w, "           warning: %s\n", warning)
		}
	}
	fmt.Fprintf(w, "\nExpected %s, logged %s",
		worklog.FormatHours(r.Expected), worklog.FormatHours(r.Actual()))
	if shortfall := r.Shortfall(); shortfall > 0 {
		fmt.Fprintf(w, " (short %s)", worklog.FormatHours(shortfall))
	}
	fmt.Fprintln(w)
}

// RenderDay prints a single reconcile outcome.
func RenderDay(w io.Writer, s DaySummary) {
	fmt.Fprintf(w, "%s: %s", s.Date, s.Status)
	if s.Reason != "" {
		fmt.Fprintf(w, " (%s)", s.Reason)
	}
	fmt.Fprintf(w, " existing %s, added %s, deleted %d\n",
		worklog.FormatHours(s.Existing), worklog.FormatHours(s.Added), s.DeletedCount)
	for _, entry := range s.Created {
		fmt.Fprintf(w, "  + %-12s %s\n", entry.ItemKey, worklog.FormatHours(entry.Duration))
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

// RenderMonth prints a month calendar with the expected duration total.
func RenderMonth(w io.Writer, view schedule.MonthView, dailyTarget time.Duration) {
	fmt.Fprintf(w, "%s %d\n\n", view.Month, view.Year)
	for _, day := range view.Days {
		marker := "  "
		if day.Working {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%-12s %-10s %s\n", marker, day.Date, day.Date.Weekday(), day.Reason)
	}
	expected := time.Duration(view.WorkingDays) * dailyTarget
	fmt.Fprintf(w, "\n%d working days, expected %s\n", view.WorkingDays, worklog.FormatHours(expected))
}
