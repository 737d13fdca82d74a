package timesheet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// noteRecorder captures notifications for assertions.
type noteRecorder struct {
	mu    sync.Mutex
	notes []string
}

func (n *noteRecorder) Notify(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, title+": "+body)
}

func (n *noteRecorder) All() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notes...)
}

// fixture wires an engine against memory fakes and a holiday-free locale, so
// weekday classification is deterministic for any fixed test date.
type fixture struct {
	ledger    *worklog.MemoryLedger
	directory *worklog.MemoryDirectory
	calendar  *worklog.MemoryCalendar
	notes     *noteRecorder
	schedule  *schedule.Schedule
	engine    *Engine
}

func newFixture(t *testing.T, mutate func(cfg *overhead.Config)) *fixture {
	t.Helper()
	return newFixtureWith(t, mutate, nil)
}

func newFixtureWith(t *testing.T, mutate func(cfg *overhead.Config), wire func(cfg *Config)) *fixture {
	t.Helper()

	cfg := overhead.Config{
		ProjectKey: "OH",
		CurrentCycle: overhead.TargetSet{
			Targets: []worklog.Target{{Key: "OH-100"}},
			Mode:    worklog.ModeSingle,
		},
		LeaveTarget:    "HR-1",
		FallbackTarget: "OH-999",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		ledger:    worklog.NewMemoryLedger(),
		directory: worklog.NewMemoryDirectory(),
		calendar:  worklog.NewMemoryCalendar(),
		notes:     &noteRecorder{},
		schedule:  schedule.NewSchedule(schedule.Locale{Country: "ZZ"}, schedule.Overrides{}, nil),
	}
	engineCfg := Config{
		PersonID:    "alice",
		DailyTarget: 8 * time.Hour,
		Schedule:    f.schedule,
		Policy:      overhead.NewPolicy(cfg),
		Directory:   f.directory,
		Ledger:      f.ledger,
		Calendar:    f.calendar,
		Notifier:    f.notes,
	}
	if wire != nil {
		wire(&engineCfg)
	}
	eng, err := NewEngine(engineCfg)
	require.NoError(t, err)
	f.engine = eng
	return f
}

func date(s string) schedule.Date {
	d, err := schedule.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// pairs flattens entries to (key, duration) for order-sensitive comparison
// across runs, where remote IDs differ.
func pairs(entries []worklog.LedgerEntry) []worklog.Allocation {
	out := make([]worklog.Allocation, 0, len(entries))
	for _, e := range entries {
		out = append(out, worklog.Allocation{Target: e.ItemKey, Duration: e.Duration})
	}
	return out
}

func TestNewEngineValidation(t *testing.T) {
	sched := schedule.NewSchedule(schedule.Locale{Country: "ZZ"}, schedule.Overrides{}, nil)
	policy := overhead.NewPolicy(overhead.Config{})
	ledger := worklog.NewMemoryLedger()
	directory := worklog.NewMemoryDirectory()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing person", Config{DailyTarget: 8 * time.Hour, Schedule: sched, Policy: policy, Directory: directory, Ledger: ledger}},
		{"zero target", Config{PersonID: "alice", Schedule: sched, Policy: policy, Directory: directory, Ledger: ledger}},
		{"fractional target", Config{PersonID: "alice", DailyTarget: 8*time.Hour + 300*time.Millisecond, Schedule: sched, Policy: policy, Directory: directory, Ledger: ledger}},
		{"missing ledger", Config{PersonID: "alice", DailyTarget: 8 * time.Hour, Schedule: sched, Policy: policy, Directory: directory}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg)
			require.Error(t, err)
			assert.True(t, worklog.IsValidation(err))
		})
	}
}

func TestReconcileRebuildsDayFromActiveItems(t *testing.T) {
	// GIVEN yesterday's pass logged DEV-1 and DEV-2, and since then DEV-1
	// left the qualifying set while DEV-3 entered it
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-1", Date: monday, Duration: 4 * time.Hour})
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-2", Date: monday, Duration: 4 * time.Hour})
	f.directory.Active = []worklog.WorkItem{{Key: "DEV-2"}, {Key: "DEV-3"}}

	// WHEN the day is reconciled
	sum, err := f.engine.Reconcile(context.Background(), monday)

	// THEN the stale entries are gone and the day reflects the current set
	require.NoError(t, err)
	assert.Equal(t, StatusReconciled, sum.Status)
	assert.Equal(t, 2, sum.DeletedCount)
	assert.Equal(t, 8*time.Hour, sum.Existing)
	assert.Equal(t, 8*time.Hour, sum.Added)

	assert.Equal(t, []worklog.Allocation{
		{Target: "DEV-2", Duration: 4 * time.Hour},
		{Target: "DEV-3", Duration: 4 * time.Hour},
	}, pairs(f.ledger.EntriesOn(monday)))
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.directory.Active = []worklog.WorkItem{{Key: "DEV-1"}, {Key: "DEV-2"}, {Key: "DEV-3"}}

	first, err := f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)
	after := pairs(f.ledger.EntriesOn(monday))

	second, err := f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)

	assert.Equal(t, first.Added, second.Added)
	assert.Equal(t, after, pairs(f.ledger.EntriesOn(monday)))
	assert.Equal(t, 8*time.Hour, worklog.TotalDuration(f.ledger.EntriesOn(monday)))
}

func TestReconcileWeekendIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	saturday := date("2026-01-03")
	stray := f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-9", Date: saturday, Duration: 2 * time.Hour})

	sum, err := f.engine.Reconcile(context.Background(), saturday)

	require.NoError(t, err)
	assert.Equal(t, StatusOffDay, sum.Status)
	assert.Zero(t, sum.DeletedCount)
	assert.Zero(t, sum.Added)

	// Even stray entries survive: weekends are never mutated.
	entries := f.ledger.EntriesOn(saturday)
	require.Len(t, entries, 1)
	assert.Equal(t, stray.ID, entries[0].ID)
}

func TestReconcileLeaveDay(t *testing.T) {
	f := newFixture(t, nil)
	tuesday := date("2026-01-06")
	f.schedule.AddLeave(tuesday)

	// First pass books the full target on the leave target.
	sum, err := f.engine.Reconcile(context.Background(), tuesday)
	require.NoError(t, err)
	assert.Equal(t, StatusLeaveLogged, sum.Status)
	assert.Equal(t, 8*time.Hour, sum.Added)

	entries := f.ledger.EntriesOn(tuesday)
	require.Len(t, entries, 1)
	assert.Equal(t, "HR-1", entries[0].ItemKey)
	assert.Equal(t, 8*time.Hour, entries[0].Duration)
	assert.Equal(t, "Leave day (leave)", entries[0].Description)
	firstID := entries[0].ID

	// A re-run sees the protected leave entry and changes nothing.
	sum, err = f.engine.Reconcile(context.Background(), tuesday)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, sum.Status)
	assert.Zero(t, sum.Added)
	assert.Zero(t, sum.DeletedCount)

	entries = f.ledger.EntriesOn(tuesday)
	require.Len(t, entries, 1)
	assert.Equal(t, firstID, entries[0].ID)
}

func TestReconcileLeaveDayClearsRegularEntries(t *testing.T) {
	f := newFixture(t, nil)
	tuesday := date("2026-01-06")
	f.schedule.AddLeave(tuesday)
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-1", Date: tuesday, Duration: 3 * time.Hour})

	sum, err := f.engine.Reconcile(context.Background(), tuesday)

	require.NoError(t, err)
	assert.Equal(t, StatusLeaveLogged, sum.Status)
	assert.Equal(t, 1, sum.DeletedCount)
	assert.Equal(t, []worklog.Allocation{
		{Target: "HR-1", Duration: 8 * time.Hour},
	}, pairs(f.ledger.EntriesOn(tuesday)))
}

func TestReconcileLeaveDayWithoutLeaveTarget(t *testing.T) {
	f := newFixture(t, func(cfg *overhead.Config) { cfg.LeaveTarget = "" })
	tuesday := date("2026-01-06")
	f.schedule.AddLeave(tuesday)

	sum, err := f.engine.Reconcile(context.Background(), tuesday)

	require.NoError(t, err)
	assert.Equal(t, StatusOffDay, sum.Status)
	assert.NotEmpty(t, sum.Warnings)
	assert.Empty(t, f.ledger.EntriesOn(tuesday))
}

func TestReconcilePreservesOverheadEntries(t *testing.T) {
	// GIVEN a day holding a protected overhead entry and a stale regular one
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	kept := f.ledger.Seed(worklog.LedgerEntry{ItemKey: "OH-50", Date: monday, Duration: 2 * time.Hour})
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-1", Date: monday, Duration: 3 * time.Hour})
	f.directory.Active = []worklog.WorkItem{{Key: "DEV-9"}}

	// WHEN reconciled
	sum, err := f.engine.Reconcile(context.Background(), monday)

	// THEN the overhead entry survives untouched and only the remainder is
	// reallocated
	require.NoError(t, err)
	assert.Equal(t, 1, sum.DeletedCount)
	assert.Equal(t, 6*time.Hour, sum.Added)

	entries := f.ledger.EntriesOn(monday)
	require.Len(t, entries, 2)
	assert.Equal(t, kept.ID, entries[0].ID)
	assert.Equal(t, "DEV-9", entries[1].ItemKey)
	assert.Equal(t, 6*time.Hour, entries[1].Duration)
	assert.Equal(t, 8*time.Hour, worklog.TotalDuration(entries))
}

func TestReconcileBaselineTopUp(t *testing.T) {
	f := newFixture(t, func(cfg *overhead.Config) { cfg.Baseline = time.Hour })
	monday := date("2026-01-05")
	f.directory.Active = []worklog.WorkItem{{Key: "DEV-1"}}

	sum, err := f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, StatusReconciled, sum.Status)
	assert.Equal(t, []worklog.Allocation{
		{Target: "OH-100", Duration: time.Hour},
		{Target: "DEV-1", Duration: 7 * time.Hour},
	}, pairs(f.ledger.EntriesOn(monday)))

	entries := f.ledger.EntriesOn(monday)
	assert.Equal(t, worklog.OriginOverhead, entries[0].Origin)
	assert.Equal(t, descGeneralOverhead, entries[0].Description)

	// The met baseline is not topped up again on a re-run.
	_, err = f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)
	assert.Equal(t, []worklog.Allocation{
		{Target: "OH-100", Duration: time.Hour},
		{Target: "DEV-1", Duration: 7 * time.Hour},
	}, pairs(f.ledger.EntriesOn(monday)))
}

func TestReconcileDayAlreadyCoveredByOverhead(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "OH-50", Date: monday, Duration: 8 * time.Hour})

	sum, err := f.engine.Reconcile(context.Background(), monday)

	require.NoError(t, err)
	assert.Equal(t, StatusComplete, sum.Status)
	assert.Zero(t, sum.Added)
	require.Len(t, f.ledger.EntriesOn(monday), 1)
}

func TestReconcileNoActiveItemsGoesToCurrentCycle(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")

	sum, err := f.engine.Reconcile(context.Background(), monday)

	require.NoError(t, err)
	assert.Equal(t, StatusReconciled, sum.Status)
	entries := f.ledger.EntriesOn(monday)
	require.Len(t, entries, 1)
	assert.Equal(t, "OH-100", entries[0].ItemKey)
	assert.Equal(t, 8*time.Hour, entries[0].Duration)
	assert.Equal(t, descGeneralOverhead, entries[0].Description)
}

func TestReconcileNothingConfiguredLeavesDayShort(t *testing.T) {
	f := newFixture(t, func(cfg *overhead.Config) { cfg.CurrentCycle = overhead.TargetSet{} })
	monday := date("2026-01-05")

	sum, err := f.engine.Reconcile(context.Background(), monday)

	// Zero entries is the documented degenerate outcome, not an error.
	require.NoError(t, err)
	assert.Equal(t, StatusReconciled, sum.Status)
	assert.NotEmpty(t, sum.Warnings)
	assert.Empty(t, f.ledger.EntriesOn(monday))
}

func TestReconcilePlanningWindow(t *testing.T) {
	// Cycle PI.26.1.JAN.09 ends Friday 2026-01-09; the window spans the next
	// five working days, Jan 12 through Jan 16.
	mutate := func(cfg *overhead.Config) {
		cfg.CycleID = "PI.26.1.JAN.09"
		cfg.PlanningCycle = overhead.TargetSet{
			Targets: []worklog.Target{{Key: "PLAN-1"}},
			Mode:    worklog.ModeSingle,
		}
	}

	t.Run("inside window planning wins over items", func(t *testing.T) {
		f := newFixture(t, mutate)
		f.directory.Active = []worklog.WorkItem{{Key: "DEV-1"}}
		inWindow := date("2026-01-13")

		sum, err := f.engine.Reconcile(context.Background(), inWindow)

		require.NoError(t, err)
		assert.Equal(t, StatusReconciled, sum.Status)
		entries := f.ledger.EntriesOn(inWindow)
		require.Len(t, entries, 1)
		assert.Equal(t, "PLAN-1", entries[0].ItemKey)
		assert.Equal(t, 8*time.Hour, entries[0].Duration)
		assert.Equal(t, descPlanning, entries[0].Description)
	})

	t.Run("cycle end day itself is outside", func(t *testing.T) {
		f := newFixture(t, mutate)
		f.directory.Active = []worklog.WorkItem{{Key: "DEV-1"}}
		end := date("2026-01-09")

		_, err := f.engine.Reconcile(context.Background(), end)

		require.NoError(t, err)
		entries := f.ledger.EntriesOn(end)
		require.Len(t, entries, 1)
		assert.Equal(t, "DEV-1", entries[0].ItemKey)
	})

	t.Run("after window normal allocation resumes", func(t *testing.T) {
		f := newFixture(t, mutate)
		f.directory.Active = []worklog.WorkItem{{Key: "DEV-1"}}
		after := date("2026-01-19")

		_, err := f.engine.Reconcile(context.Background(), after)

		require.NoError(t, err)
		entries := f.ledger.EntriesOn(after)
		require.Len(t, entries, 1)
		assert.Equal(t, "DEV-1", entries[0].ItemKey)
	})
}

func TestReconcilePlanningFallsBackToCurrentCycle(t *testing.T) {
	f := newFixture(t, func(cfg *overhead.Config) {
		cfg.CycleID = "PI.26.1.JAN.09"
	})
	inWindow := date("2026-01-13")

	sum, err := f.engine.Reconcile(context.Background(), inWindow)

	require.NoError(t, err)
	assert.Contains(t, sum.Warnings, "planning targets unset, using current-cycle targets")
	entries := f.ledger.EntriesOn(inWindow)
	require.Len(t, entries, 1)
	assert.Equal(t, "OH-100", entries[0].ItemKey)
	assert.Equal(t, descPlanning, entries[0].Description)
}

func TestReconcileAuthenticationFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.directory.ActiveErr = fmt.Errorf("token rejected: %w", worklog.ErrAuthenticationFailed)

	sum, err := f.engine.Reconcile(context.Background(), monday)

	require.Error(t, err)
	assert.True(t, worklog.IsAuthentication(err))
	assert.Equal(t, StatusSkipped, sum.Status)
	assert.Empty(t, f.ledger.EntriesOn(monday))
}

func TestReconcileTransientFailureAbortsStep(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.directory.ActiveErr = fmt.Errorf("connect: %w", worklog.ErrTransientNetwork)

	sum, err := f.engine.Reconcile(context.Background(), monday)

	require.Error(t, err)
	assert.True(t, worklog.IsTransient(err))
	assert.Equal(t, StatusSkipped, sum.Status)
	assert.NotEmpty(t, sum.Warnings)
}

func TestReconcileDeleteFailureWarnsAndContinues(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-1", Date: monday, Duration: 4 * time.Hour})
	f.ledger.DeleteErr = fmt.Errorf("gateway: %w", worklog.ErrTransientNetwork)
	f.directory.Active = []worklog.WorkItem{{Key: "DEV-2"}}

	sum, err := f.engine.Reconcile(context.Background(), monday)

	// The failed delete is reported, the rest of the pass still runs.
	require.NoError(t, err)
	assert.Zero(t, sum.DeletedCount)
	assert.NotEmpty(t, sum.Warnings)
	require.Len(t, f.ledger.EntriesOn(monday), 2)
}

func TestReconcileMissingTargetIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.ledger.CreateErr = fmt.Errorf("issue OH-100: %w", worklog.ErrNotFound)

	sum, err := f.engine.Reconcile(context.Background(), monday)

	require.NoError(t, err)
	assert.Equal(t, StatusReconciled, sum.Status)
	assert.Zero(t, sum.Added)
	assert.Contains(t, sum.Warnings, "target OH-100 not found, skipped")
}

func TestReconcileItemDescriptions(t *testing.T) {
	f := newFixture(t, nil)
	monday := date("2026-01-05")
	f.directory.Active = []worklog.WorkItem{{Key: "DEV-1"}, {Key: "DEV-2"}}
	f.directory.Details["DEV-1"] = worklog.ItemDetail{
		Description:       "Ship the importer. Then more.",
		RecentAnnotations: []string{"Fixed the header parsing"},
	}

	_, err := f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)

	entries := f.ledger.EntriesOn(monday)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ship the importer\nFixed the header parsing", entries[0].Description)
	// Detail fetch failure degrades to the plain fallback line.
	assert.Equal(t, "Worked on DEV-2", entries[1].Description)
}

func TestReconcileStalenessCheckNotifiesOncePerDay(t *testing.T) {
	// GIVEN targets configured for a cycle the live overhead items no longer
	// reference
	stamps := overhead.NewMemoryStamps()
	f := newFixtureWith(t, func(cfg *overhead.Config) {
		cfg.CycleID = "PI.25.4.DEC.19"
	}, func(cfg *Config) {
		cfg.Staleness = overhead.NewStalenessChecker(stamps)
	})
	monday := date("2026-01-05")
	f.directory.Overhead = []worklog.WorkItem{
		{Key: "OH-200", Title: "Ceremonies PI.26.1.JAN.09"},
	}

	// WHEN the day is reconciled twice
	_, err := f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)
	_, err = f.engine.Reconcile(context.Background(), monday)
	require.NoError(t, err)

	// THEN the drift warning fires exactly once; the second run hits the
	// daily stamp
	stale := 0
	for _, note := range f.notes.All() {
		if strings.HasPrefix(note, "Overhead configuration stale") {
			stale++
		}
	}
	assert.Equal(t, 1, stale)
}
