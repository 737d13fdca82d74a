package timesheet

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

/* =============================================================================
 * RANGE VERIFICATION AND BACKFILL
 * =============================================================================
 *
 * PURPOSE
 *   Audit a date range and fill every gap so each past working day sums to
 *   the daily target. Unlike the daily reconcile pass, verification never
 *   deletes anything: existing entries are trusted and only the missing
 *   remainder is added.
 *
 * DESIGN
 *   Gaps are filled from the most specific evidence available, falling back
 *   tier by tier:
 *     tier 1  items that were in progress on that date (point-in-time query),
 *             minus items already logged that day
 *     tier 2  scheduled events from the calendar of record, booked against
 *             the fallback target with the event title as description
 *     tier 3  the whole gap on the fallback target as general overhead
 *   A tier that errors or produces nothing yields to the next one. Days in
 *   the future are reported but never touched.
 *
 * SEE ALSO
 *   reconcile.go for the destructive single-day pass.
 * =============================================================================
 */

// Verify audits [from, to] and backfills shortfalls on past working days.
// Authentication failures abort the run; any other per-day failure marks
// that day skipped and moves on. The returned report covers every day in
// the range, including untouched ones.
func (e *Engine) Verify(ctx context.Context, from, to schedule.Date) (Report, error) {
	if to.Before(from) {
		return Report{}, &worklog.ValidationError{Field: "range", Message: "end date precedes start date"}
	}

	today := schedule.Today()
	e.refresh(ctx, today)

	report := Report{From: from, To: to}
	for d := from; !d.After(to); d = d.AddDays(1) {
		summary, err := e.verifyDay(ctx, d, today)
		report.Days = append(report.Days, summary)
		report.Existing += summary.Existing
		report.Added += summary.Added
		if summary.Status != StatusFuture && e.schedule.IsWorking(d) {
			report.Expected += e.dailyTarget
		}
		if err != nil {
			if worklog.IsAuthentication(err) {
				return report, err
			}
			log.Printf("[Verifier] Warning: %s skipped: %v", d, err)
		}
	}

	if short := report.Shortfall(); short > shortfallThreshold {
		e.notify("Timesheet shortfall",
			fmt.Sprintf("%s short between %s and %s", worklog.FormatHours(short), from, to))
	}
	return report, nil
}

func (e *Engine) verifyDay(ctx context.Context, d, today schedule.Date) (DaySummary, error) {
	day := e.schedule.Classify(d)
	summary := DaySummary{Date: d, Reason: day.Reason}

	if d.After(today) {
		summary.Status = StatusFuture
		return summary, nil
	}

	entries, err := e.dayEntries(ctx, d)
	if err != nil {
		summary.Status = StatusSkipped
		summary.Warn("entry listing failed")
		return summary, err
	}
	summary.Existing = worklog.TotalDuration(entries)

	if !day.Working {
		return e.verifyOffDay(ctx, d, day, summary)
	}

	gap := e.dailyTarget - summary.Existing
	if gap <= 0 {
		summary.Status = StatusComplete
		return summary, nil
	}

	logged := worklog.LoggedKeys(entries)

	if done, err := e.backfillFromItems(ctx, d, gap, logged, &summary); err != nil {
		return summary, err
	} else if done {
		summary.Status = StatusBackfilledItems
		return summary, nil
	}

	if done, err := e.backfillFromCalendar(ctx, d, gap, &summary); err != nil {
		return summary, err
	} else if done {
		summary.Status = StatusBackfilledCalendar
		return summary, nil
	}

	return e.backfillFallback(ctx, d, gap, summary)
}

// verifyOffDay handles weekends, holidays and leave inside a verification
// range. Weekends are never logged; other off days get the same leave
// top-up the daily pass produces, minus the deletion step.
func (e *Engine) verifyOffDay(ctx context.Context, d schedule.Date, day schedule.CalendarDay, summary DaySummary) (DaySummary, error) {
	if day.Kind == schedule.KindWeekend {
		summary.Status = StatusOffDay
		return summary, nil
	}

	remaining := e.dailyTarget - summary.Existing
	if remaining <= 0 {
		summary.Status = StatusLeaveLogged
		return summary, nil
	}

	set, _, ok := e.policy.Resolve(overhead.CaseLeave)
	if !ok {
		summary.Status = StatusOffDay
		summary.Warn("no leave target configured")
		return summary, nil
	}
	allocs, err := worklog.Allocate(remaining, set.Targets, set.Mode)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	desc := fmt.Sprintf("Leave day (%s)", day.Reason)
	if err := e.createAllocations(ctx, d, allocs, staticDescriber(desc), &summary); err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	summary.Status = StatusLeaveLogged
	return summary, nil
}

// backfillFromItems is tier 1: split the gap across items that were in
// progress on that date and not already logged that day. A directory error
// is logged and yields to the next tier rather than failing the day,
// except for authentication failures which abort the whole run.
func (e *Engine) backfillFromItems(ctx context.Context, d schedule.Date, gap time.Duration, logged map[string]bool, summary *DaySummary) (bool, error) {
	items, err := e.directory.ListActiveAsOf(ctx, e.personID, d)
	if err != nil {
		if worklog.IsAuthentication(err) {
			return false, fmt.Errorf("point-in-time item query: %w", err)
		}
		log.Printf("[Verifier] Warning: point-in-time item query for %s failed: %v", d, err)
		return false, nil
	}

	targets := make([]worklog.Target, 0, len(items))
	for _, item := range items {
		if logged[item.Key] {
			continue
		}
		targets = append(targets, worklog.Target{Key: item.Key})
	}
	if len(targets) == 0 {
		return false, nil
	}

	allocs, err := worklog.Allocate(gap, targets, worklog.ModeEqual)
	if err != nil {
		return false, err
	}
	if err := e.createAllocations(ctx, d, allocs, e.itemDescriber(ctx), summary); err != nil {
		return false, err
	}
	log.Printf("[Verifier] %s: backfilled %s across %d items", d, worklog.FormatHours(summary.Added), len(targets))
	return true, nil
}

// backfillFromCalendar is tier 2: book that day's scheduled events against
// the fallback target, each capped so the day never exceeds the gap, with
// any remainder logged as general overhead. Disabled when no calendar of
// record or no fallback target is wired.
func (e *Engine) backfillFromCalendar(ctx context.Context, d schedule.Date, gap time.Duration, summary *DaySummary) (bool, error) {
	fallback := e.policy.Config().FallbackTarget
	if e.calendar == nil || fallback == "" {
		return false, nil
	}

	events, err := e.calendar.ListEvents(ctx, e.personID, d)
	if err != nil {
		if worklog.IsAuthentication(err) {
			return false, fmt.Errorf("calendar query: %w", err)
		}
		log.Printf("[Verifier] Warning: calendar query for %s failed: %v", d, err)
		return false, nil
	}
	if len(events) == 0 {
		return false, nil
	}

	left := gap
	var allocs []worklog.Allocation
	var descs []string
	for _, ev := range events {
		if left <= 0 {
			break
		}
		dur := ev.Duration.Truncate(time.Second)
		if dur <= 0 {
			continue
		}
		if dur > left {
			dur = left
		}
		allocs = append(allocs, worklog.Allocation{Target: fallback, Duration: dur})
		descs = append(descs, ev.Title)
		left -= dur
	}
	if len(allocs) == 0 {
		return false, nil
	}
	if left > 0 {
		allocs = append(allocs, worklog.Allocation{Target: fallback, Duration: left})
		descs = append(descs, descGeneralOverhead)
	}

	next := 0
	describe := func(string) string {
		desc := descs[next]
		next++
		return desc
	}
	if err := e.createAllocations(ctx, d, allocs, describe, summary); err != nil {
		return false, err
	}
	log.Printf("[Verifier] %s: backfilled %s from %d calendar events", d, worklog.FormatHours(summary.Added), len(descs))
	return true, nil
}

// backfillFallback is tier 3: the whole gap as a single general overhead
// entry. Without a fallback target the day stays short with a warning.
func (e *Engine) backfillFallback(ctx context.Context, d schedule.Date, gap time.Duration, summary DaySummary) (DaySummary, error) {
	set, ok := e.policy.FallbackSet()
	if !ok {
		log.Printf("[Verifier] Warning: %s is %s short and no fallback target is configured", d, worklog.FormatHours(gap))
		summary.Warn("no fallback target configured, day left short")
		summary.Status = StatusSkipped
		return summary, nil
	}

	allocs, err := worklog.Allocate(gap, set.Targets, set.Mode)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	if err := e.createAllocations(ctx, d, allocs, staticDescriber(descGeneralOverhead), &summary); err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	log.Printf("[Verifier] %s: backfilled %s to %s", d, worklog.FormatHours(gap), set.Targets[0].Key)
	summary.Status = StatusBackfilledOverhead
	return summary, nil
}
