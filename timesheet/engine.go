/*
Package timesheet is the reconciliation engine: it classifies dates through
the schedule, rewrites ledger days idempotently, backfills historical gaps
through a tiered fallback chain and submits monthly periods.

DESIGN:
  The engine is a single synchronous batch per call. All remote access goes
  through the worklog capability interfaces; the engine holds no transport
  code. Overhead routing decisions live in the overhead.Policy rule table.

  Failure kinds drive control flow (worklog/errors.go):
    authentication  -> abort the run before further mutations
    not-found       -> skip that target, keep the batch going
    transient       -> abandon the current step, no retry
    validation      -> rejected before any remote call

USAGE:
  eng, err := timesheet.NewEngine(timesheet.Config{...})
  summary, err := eng.Reconcile(ctx, schedule.Today())
  report, err := eng.Verify(ctx, monday, friday)
*/
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

// Entry descriptions for budget that is not attributable to regular items.
const (
	descGeneralOverhead = "General overhead"
	descPlanning        = "Cycle planning"
)

// shortfallThreshold is how far under target a range may land before the
// notification sink is pinged.
const shortfallThreshold = 30 * time.Minute

// Config wires the engine. Every collaborator is passed in explicitly.
type Config struct {
	PersonID    string
	DailyTarget time.Duration

	Schedule  *schedule.Schedule
	Policy    *overhead.Policy
	Directory worklog.WorkItemDirectory
	Ledger    worklog.TimeLedger

	// Optional collaborators.
	Calendar  worklog.CalendarOfRecord    // nil disables backfill tier 2
	Notifier  worklog.NotificationSink    // nil drops notifications
	Staleness *overhead.StalenessChecker  // nil disables the drift check
}

// Engine reconciles one person's time record.
type Engine struct {
	personID    string
	dailyTarget time.Duration
	schedule    *schedule.Schedule
	policy      *overhead.Policy
	directory   worklog.WorkItemDirectory
	ledger      worklog.TimeLedger
	calendar    worklog.CalendarOfRecord
	notifier    worklog.NotificationSink
	staleness   *overhead.StalenessChecker
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.PersonID == "" {
		return nil, &worklog.ValidationError{Field: "personID", Message: "required"}
	}
	if cfg.DailyTarget <= 0 {
		return nil, &worklog.ValidationError{Field: "dailyTarget", Message: "must be positive"}
	}
	if cfg.DailyTarget%time.Second != 0 {
		return nil, &worklog.ValidationError{Field: "dailyTarget", Message: "must be whole seconds"}
	}
	if cfg.Schedule == nil || cfg.Policy == nil || cfg.Directory == nil || cfg.Ledger == nil {
		return nil, &worklog.ValidationError{Field: "config", Message: "schedule, policy, directory and ledger are required"}
	}
	return &Engine{
		personID:    cfg.PersonID,
		dailyTarget: cfg.DailyTarget,
		schedule:    cfg.Schedule,
		policy:      cfg.Policy,
		directory:   cfg.Directory,
		ledger:      cfg.Ledger,
		calendar:    cfg.Calendar,
		notifier:    cfg.Notifier,
		staleness:   cfg.Staleness,
	}, nil
}

// Classify exposes the calendar verdict for one date.
func (e *Engine) Classify(d schedule.Date) schedule.CalendarDay {
	return e.schedule.Classify(d)
}

// DescribeOverheadConfig returns the current policy for display.
func (e *Engine) DescribeOverheadConfig() overhead.Description {
	return e.policy.Describe()
}

// DailyTarget returns the configured daily duration target.
func (e *Engine) DailyTarget() time.Duration { return e.dailyTarget }

// PersonID returns the ledger identity runs are attributed to.
func (e *Engine) PersonID() string { return e.personID }

// Schedule returns the engine's calendar for override management.
func (e *Engine) Schedule() *schedule.Schedule { return e.schedule }

// =============================================================================
// SHARED RUN PLUMBING
// =============================================================================

// refresh runs the holiday refresh protocol and surfaces year-end coverage
// warnings. Called once per engine entry point.
func (e *Engine) refresh(ctx context.Context, today schedule.Date) {
	e.schedule.Refresh(ctx)
	for _, w := range e.schedule.YearEndWarnings(today) {
		log.Printf("[Timesheet] Warning: %s", w)
		e.notify("Holiday data incomplete", w)
	}
}

func (e *Engine) notify(title, body string) {
	if e.notifier != nil {
		e.notifier.Notify(title, body)
	}
}

// checkStaleness runs the daily-cached overhead drift check when the
// directory can list live overhead items. The stamp read happens before the
// remote query so all but the first run of a day stay local. Never fails
// the run.
func (e *Engine) checkStaleness(ctx context.Context, today schedule.Date) {
	if e.staleness == nil || e.policy.Config().CycleID == "" {
		return
	}
	lister, ok := e.directory.(worklog.OverheadLister)
	if !ok {
		return
	}
	if !e.staleness.ShouldCheck(today) {
		return
	}
	live, err := lister.ListOverhead(ctx)
	if err != nil {
		log.Printf("[Timesheet] Warning: overhead staleness check skipped: %v", err)
		return
	}
	if warning, stale := e.staleness.Check(today, e.policy.Config().CycleID, live); stale {
		log.Printf("[Timesheet] Warning: %s", warning)
		e.notify("Overhead configuration stale", warning)
	}
}

// dayEntries lists a date's entries with origin tags applied.
func (e *Engine) dayEntries(ctx context.Context, date schedule.Date) ([]worklog.LedgerEntry, error) {
	entries, err := e.ledger.ListEntries(ctx, e.personID, date)
	if err != nil {
		return nil, fmt.Errorf("list entries for %s: %w", date, err)
	}
	return e.policy.TagOrigins(entries), nil
}

// deleteRegular removes every regular entry. Deletion failures are logged
// and reported but never abort the remaining deletions.
func (e *Engine) deleteRegular(ctx context.Context, regular []worklog.LedgerEntry, summary *DaySummary) {
	for _, entry := range regular {
		if err := e.ledger.DeleteEntry(ctx, entry.ID); err != nil {
			log.Printf("[Reconciler] Warning: delete %s (%s, %s) failed: %v",
				entry.ID, entry.ItemKey, entry.Date, err)
			summary.Warn(fmt.Sprintf("entry %s on %s not deleted; day may exceed target", entry.ID, entry.ItemKey))
			continue
		}
		summary.DeletedCount++
	}
}

// originFor tags entries the engine creates: anything on a protected key is
// overhead, the rest is regular.
func (e *Engine) originFor(key string) worklog.Origin {
	if e.policy.IsProtectedKey(key) {
		return worklog.OriginOverhead
	}
	return worklog.OriginRegular
}

// createAllocations writes one entry per allocation. Authentication and
// transient failures abort the batch; a missing target is skipped and
// reported. Returns what was actually created.
func (e *Engine) createAllocations(ctx context.Context, date schedule.Date, allocs []worklog.Allocation, describe func(key string) string, summary *DaySummary) error {
	for _, a := range allocs {
		entry := worklog.LedgerEntry{
			ItemKey:     a.Target,
			Date:        date,
			Duration:    a.Duration,
			Description: describe(a.Target),
			Origin:      e.originFor(a.Target),
		}
		created, err := e.ledger.CreateEntry(ctx, entry)
		if err != nil {
			if worklog.IsNotFound(err) {
				log.Printf("[Reconciler] Warning: target %s not found, skipped", a.Target)
				summary.Warn(fmt.Sprintf("target %s not found, skipped", a.Target))
				continue
			}
			return fmt.Errorf("create entry on %s: %w", a.Target, err)
		}
		summary.Created = append(summary.Created, created)
		summary.Added += created.Duration
	}
	return nil
}

// itemDescriber builds per-item descriptions from tracker detail, falling
// back to a plain line when the detail fetch fails.
func (e *Engine) itemDescriber(ctx context.Context) func(key string) string {
	return func(key string) string {
		detail, err := e.directory.GetDetail(ctx, key)
		if err != nil {
			log.Printf("[Reconciler] Warning: detail for %s unavailable: %v", key, err)
			return fmt.Sprintf("Worked on %s", key)
		}
		return worklog.Summarize(key, detail)
	}
}

func staticDescriber(text string) func(string) string {
	return func(string) string { return text }
}
