/*
scheduler.go - Daily reconciliation scheduler and run execution

PURPOSE:
  Runs the engine once per working day without a cron entry: a background
  ticker checks whether today still needs its reconcile pass and runs it.
  All runs, timed or manual, flow through the same guarded entry points so
  at most one run is in flight and every run lands in the journal.

DESIGN:
  - Background goroutine with a configurable check interval
  - A day is owed a run when it is a working day and the journal holds no
    completed reconcile run covering it
  - Manual triggers (API, CLI) call RunReconcile/RunVerify/RunSubmit
    directly; a second caller gets ErrRunInProgress instead of queueing

USAGE:
  scheduler := NewScheduler(handler, journal)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile/TriggerVerify/TriggerSubmit endpoints
  - timesheet/run.go: SyncRun and the journal interface
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
)

// ErrRunInProgress is returned when a run is requested while another is
// still executing.
var ErrRunInProgress = errors.New("a run is already in progress")

// Scheduler owns the daily timer and the single-run-at-a-time guard.
type Scheduler struct {
	Handler       *Handler
	Journal       timesheet.RunJournal
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// runMu guards inFlight separately from the lifecycle mutex, so a
	// Stop() waiting on the worker cannot deadlock a run that is starting.
	runMu    sync.Mutex
	inFlight bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(handler *Handler, journal timesheet.RunJournal) *Scheduler {
	return &Scheduler{
		Handler:       handler,
		Journal:       journal,
		CheckInterval: 30 * time.Minute,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run(s.ticker.C)

	log.Printf("[Scheduler] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *Scheduler) run(tick <-chan time.Time) {
	defer s.wg.Done()

	// Run immediately on start
	s.checkAndProcess()

	for {
		select {
		case <-tick:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) checkAndProcess() {
	ctx := context.Background()
	today := schedule.Today()

	if !s.Handler.Engine().Schedule().IsWorking(today) {
		return
	}

	done, err := s.reconciledToday(ctx, today)
	if err != nil {
		log.Printf("[Scheduler] Error reading run journal: %v", err)
		return
	}
	if done {
		return
	}

	log.Printf("[Scheduler] %s has no reconcile run yet, starting one", today)
	if _, err := s.RunReconcile(ctx, today, timesheet.TriggerTimer); err != nil {
		log.Printf("[Scheduler] Timed reconcile failed: %v", err)
	}
}

// reconciledToday reports whether the journal already holds a completed
// reconcile run covering today.
func (s *Scheduler) reconciledToday(ctx context.Context, today schedule.Date) (bool, error) {
	runs, err := s.Journal.ListRuns(ctx, 50)
	if err != nil {
		return false, err
	}
	for _, run := range runs {
		if run.Kind != timesheet.RunReconcile || run.Status != timesheet.RunCompleted {
			continue
		}
		if !today.Before(run.From) && !today.After(run.To) {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// GUARDED RUN EXECUTION
// =============================================================================

// begin claims the in-flight slot and journals the running record.
func (s *Scheduler) begin(ctx context.Context, kind timesheet.RunKind, trigger timesheet.RunTrigger, from, to schedule.Date) (timesheet.SyncRun, error) {
	s.runMu.Lock()
	if s.inFlight {
		s.runMu.Unlock()
		return timesheet.SyncRun{}, ErrRunInProgress
	}
	s.inFlight = true
	s.runMu.Unlock()

	run := timesheet.SyncRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		Trigger:   trigger,
		From:      from,
		To:        to,
		Status:    timesheet.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.Journal.SaveRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Warning: run record not journaled: %v", err)
	}
	return run, nil
}

// finish releases the slot and journals the outcome.
func (s *Scheduler) finish(ctx context.Context, run timesheet.SyncRun, days []timesheet.DaySummary, runErr error) timesheet.SyncRun {
	run.Days = days
	run.FinishedAt = time.Now().UTC()
	if runErr != nil {
		run.Status = timesheet.RunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = timesheet.RunCompleted
	}
	if err := s.Journal.SaveRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Warning: run record not journaled: %v", err)
	}

	s.runMu.Lock()
	s.inFlight = false
	s.runMu.Unlock()
	return run
}

// RunReconcile executes a journaled reconcile for one date.
func (s *Scheduler) RunReconcile(ctx context.Context, date schedule.Date, trigger timesheet.RunTrigger) (timesheet.SyncRun, error) {
	run, err := s.begin(ctx, timesheet.RunReconcile, trigger, date, date)
	if err != nil {
		return timesheet.SyncRun{}, err
	}

	summary, runErr := s.Handler.Engine().Reconcile(ctx, date)
	run = s.finish(ctx, run, []timesheet.DaySummary{summary}, runErr)
	return run, runErr
}

// RunVerify executes a journaled verify over a date range.
func (s *Scheduler) RunVerify(ctx context.Context, from, to schedule.Date, trigger timesheet.RunTrigger) (timesheet.SyncRun, timesheet.Report, error) {
	run, err := s.begin(ctx, timesheet.RunVerify, trigger, from, to)
	if err != nil {
		return timesheet.SyncRun{}, timesheet.Report{}, err
	}

	report, runErr := s.Handler.Engine().Verify(ctx, from, to)
	run = s.finish(ctx, run, report.Days, runErr)
	return run, report, runErr
}

// RunSubmit executes a journaled month submission.
func (s *Scheduler) RunSubmit(ctx context.Context, year int, month time.Month, force bool, trigger timesheet.RunTrigger) (timesheet.SyncRun, timesheet.MonthSubmission, error) {
	first := schedule.NewDate(year, month, 1)
	run, err := s.begin(ctx, timesheet.RunSubmit, trigger, first, first.EndOfMonth())
	if err != nil {
		return timesheet.SyncRun{}, timesheet.MonthSubmission{}, err
	}

	sub, runErr := s.Handler.Engine().SubmitMonth(ctx, year, month, force)
	run = s.finish(ctx, run, nil, runErr)
	return run, sub, runErr
}
