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

// =============================================================================
// DAILY RECONCILIATION
// =============================================================================

// Reconcile rewrites one date's ledger so its entries sum to the daily
// target. Overhead entries are preserved; regular entries are deleted and
// recreated from the current upstream state, which makes the pass
// idempotent. Weekends are a no-op; leave days and holidays route to the
// leave target (overhead case 2).
func (e *Engine) Reconcile(ctx context.Context, date schedule.Date) (DaySummary, error) {
	today := schedule.Today()
	e.refresh(ctx, today)

	day := e.schedule.Classify(date)
	summary := DaySummary{Date: date, Reason: day.Reason}

	if !day.Working {
		if day.Kind == schedule.KindWeekend {
			log.Printf("[Reconciler] %s is a %s, nothing to do", date, day.Reason)
			summary.Status = StatusOffDay
			return summary, nil
		}
		return e.reconcileLeaveDay(ctx, date, day, summary)
	}
	return e.reconcileWorkingDay(ctx, date, summary)
}

// reconcileLeaveDay applies overhead case 2: clear stray regular entries,
// then top the day up to the full target on the leave target. Re-runs see
// the protected leave entry and stop, so the case is idempotent.
func (e *Engine) reconcileLeaveDay(ctx context.Context, date schedule.Date, day schedule.CalendarDay, summary DaySummary) (DaySummary, error) {
	entries, err := e.dayEntries(ctx, date)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	summary.Existing = worklog.TotalDuration(entries)
	overheadEntries, regular := worklog.Partition(entries)

	e.deleteRegular(ctx, regular, &summary)

	remaining := e.dailyTarget - worklog.TotalDuration(overheadEntries)
	if remaining <= 0 {
		summary.Status = StatusComplete
		return summary, nil
	}

	set, _, ok := e.policy.Resolve(overhead.CaseLeave)
	if !ok {
		log.Printf("[Reconciler] Warning: %s is %s but no leave target is configured", date, day.Reason)
		summary.Warn("no leave target configured, day left unlogged")
		summary.Status = StatusOffDay
		return summary, nil
	}

	allocs, err := worklog.Allocate(remaining, set.Targets, set.Mode)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	desc := fmt.Sprintf("Leave day (%s)", day.Reason)
	if err := e.createAllocations(ctx, date, allocs, staticDescriber(desc), &summary); err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	log.Printf("[Reconciler] %s: logged %s to %s (%s)",
		date, worklog.FormatHours(summary.Added), e.policy.Config().LeaveTarget, day.Reason)
	summary.Status = StatusLeaveLogged
	return summary, nil
}

func (e *Engine) reconcileWorkingDay(ctx context.Context, date schedule.Date, summary DaySummary) (DaySummary, error) {
	e.checkStaleness(ctx, schedule.Today())

	entries, err := e.dayEntries(ctx, date)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	summary.Existing = worklog.TotalDuration(entries)
	overheadEntries, regular := worklog.Partition(entries)

	e.deleteRegular(ctx, regular, &summary)
	overheadTotal := worklog.TotalDuration(overheadEntries)

	// Case 0: top the day's overhead up to the configured baseline before
	// anything else. A met baseline tops up zero, so re-runs never stack.
	if topUp := e.policy.BaselineTopUp(overheadTotal); topUp > 0 {
		set, _, ok := e.policy.Resolve(overhead.CaseBaseline)
		if !ok {
			log.Printf("[Reconciler] Warning: baseline overhead set but current-cycle targets are empty")
			summary.Warn("baseline overhead configured without current-cycle targets")
		} else {
			allocs, err := worklog.Allocate(topUp, set.Targets, set.Mode)
			if err != nil {
				summary.Status = StatusSkipped
				return summary, err
			}
			before := summary.Added
			if err := e.createAllocations(ctx, date, allocs, staticDescriber(descGeneralOverhead), &summary); err != nil {
				summary.Status = StatusSkipped
				return summary, err
			}
			overheadTotal += summary.Added - before
		}
	}

	remaining := e.dailyTarget - overheadTotal
	if remaining <= 0 {
		log.Printf("[Reconciler] %s already covered by overhead (%s)", date, worklog.FormatHours(overheadTotal))
		summary.Status = StatusComplete
		return summary, nil
	}

	// Case 3: planning window routes the budget to the planning set.
	if e.policy.InPlanningWindow(date, e.schedule.IsWorking) {
		return e.allocateOverheadCase(ctx, date, overhead.CasePlanning, remaining, descPlanning, summary)
	}

	items, err := e.directory.ListActive(ctx, e.personID)
	if err != nil {
		summary.Status = StatusSkipped
		summary.Warn("active item query failed, regular allocation skipped")
		return summary, fmt.Errorf("list active items: %w", err)
	}

	// Case 1: nothing qualifying in progress.
	if len(items) == 0 {
		return e.allocateOverheadCase(ctx, date, overhead.CaseNoItems, remaining, descGeneralOverhead, summary)
	}

	targets := make([]worklog.Target, len(items))
	for i, item := range items {
		targets[i] = worklog.Target{Key: item.Key}
	}
	allocs, err := worklog.Allocate(remaining, targets, worklog.ModeEqual)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	if err := e.createAllocations(ctx, date, allocs, e.itemDescriber(ctx), &summary); err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	log.Printf("[Reconciler] %s: %s across %d items, %d entries created",
		date, worklog.FormatHours(summary.Added), len(items), summary.CreatedCount())
	summary.Status = StatusReconciled
	return summary, nil
}

// allocateOverheadCase routes remaining budget through one policy case.
// An unconfigured case is the documented degenerate outcome: zero entries,
// surfaced as a warning, never an error.
func (e *Engine) allocateOverheadCase(ctx context.Context, date schedule.Date, c overhead.Case, remaining time.Duration, desc string, summary DaySummary) (DaySummary, error) {
	set, warning, ok := e.policy.Resolve(c)
	if warning != "" {
		log.Printf("[Reconciler] Warning: %s", warning)
		summary.Warn(warning)
	}
	if !ok {
		log.Printf("[Reconciler] Warning: no targets configured for %s, %s left short on %s",
			c, worklog.FormatHours(remaining), date)
		summary.Warn(fmt.Sprintf("no targets configured for %s, day left short", c))
		summary.Status = StatusReconciled
		return summary, nil
	}

	allocs, err := worklog.Allocate(remaining, set.Targets, set.Mode)
	if err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	if err := e.createAllocations(ctx, date, allocs, staticDescriber(desc), &summary); err != nil {
		summary.Status = StatusSkipped
		return summary, err
	}
	log.Printf("[Reconciler] %s: %s to overhead (%s)", date, worklog.FormatHours(summary.Added), c)
	summary.Status = StatusReconciled
	return summary, nil
}
