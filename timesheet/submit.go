package timesheet

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// MONTH SUBMISSION
// =============================================================================

// SubmitMonth submits a month for approval once it is over and its logged
// total is close enough to the expected total. Outside the last day of the
// month the call is a guarded no-op unless force is set; a shortfall above
// the alert threshold blocks submission and raises a notification instead.
// Force overrides both guards.
func (e *Engine) SubmitMonth(ctx context.Context, year int, month time.Month, force bool) (MonthSubmission, error) {
	return e.submitMonth(ctx, year, month, schedule.Today(), force)
}

func (e *Engine) submitMonth(ctx context.Context, year int, month time.Month, today schedule.Date, force bool) (MonthSubmission, error) {
	sub := MonthSubmission{Period: fmt.Sprintf("%04d-%02d", year, int(month))}
	e.refresh(ctx, today)

	inMonth := today.Year() == year && today.Month() == month
	if !force && !(inMonth && today.IsLastDayOfMonth()) {
		sub.Reason = fmt.Sprintf("not the last day of %s", sub.Period)
		log.Printf("[Submitter] %s: %s, skipping", sub.Period, sub.Reason)
		return sub, nil
	}

	view := e.schedule.MonthCalendar(year, month)
	sub.Expected = time.Duration(view.WorkingDays) * e.dailyTarget

	for _, day := range view.Days {
		if day.Date.After(today) {
			continue
		}
		entries, err := e.dayEntries(ctx, day.Date)
		if err != nil {
			return sub, err
		}
		sub.Actual += worklog.TotalDuration(entries)
	}

	if short := sub.Shortfall(); short > shortfallThreshold && !force {
		sub.Reason = fmt.Sprintf("%s short of %s expected", worklog.FormatHours(short), worklog.FormatHours(sub.Expected))
		log.Printf("[Submitter] %s not submitted: %s", sub.Period, sub.Reason)
		e.notify("Timesheet not submitted", fmt.Sprintf("%s is %s", sub.Period, sub.Reason))
		return sub, nil
	}

	if err := e.ledger.SubmitPeriod(ctx, sub.Period); err != nil {
		return sub, fmt.Errorf("submit period %s: %w", sub.Period, err)
	}
	log.Printf("[Submitter] %s submitted: %s logged of %s expected",
		sub.Period, worklog.FormatHours(sub.Actual), worklog.FormatHours(sub.Expected))
	sub.Submitted = true
	return sub, nil
}
