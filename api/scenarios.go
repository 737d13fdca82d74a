/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that swap the handler's engine for one
	backed by in-memory fakes seeded with realistic data. Each scenario
	demonstrates a specific reconciliation behavior without touching the
	real tracker or ledger services.

AVAILABLE SCENARIOS:

	typical-week:      Two active items, a partially logged week
	leave-and-holiday: Leave day plus an ad-hoc holiday this week
	planning-window:   Cycle just ended, budget goes to planning targets

HOW SCENARIOS WORK:
 1. Build fresh in-memory directory, ledger and calendar fakes
 2. Seed them with data anchored to today's date
 3. Assemble an engine over the fakes (pure weekday schedule, no feed)
 4. Install the engine on the handler, replacing the previous one

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "typical-week"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario()
 3. Add case to LoadScenario handler

NOTE:

	Scenario runs write to the in-memory ledger only. The endpoints are
	gated by Handler.AllowScenarios; leave it off for a real engine.

SEE ALSO:
  - handlers.go: Handler.setEngine, writeJSON/writeError helpers
  - worklog/memory.go: the in-memory fakes scenarios are built on
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "typical-week",
		Name:        "Typical Week",
		Description: "Two active items, Monday fully logged, Tuesday partial, rest empty",
	},
	{
		ID:          "leave-and-holiday",
		Name:        "Leave and Holiday",
		Description: "A leave day and an ad-hoc holiday falling in the current week",
	},
	{
		ID:          "planning-window",
		Name:        "Planning Window",
		Description: "Work cycle just ended, daily budget flows to the planning targets",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID set but not in the list (shouldn't happen).
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario builds the requested scenario's engine and installs it.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !h.AllowScenarios {
		writeError(w, http.StatusForbidden, "Scenarios are disabled", nil)
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		engine *timesheet.Engine
		err    error
	)
	switch req.ScenarioID {
	case "typical-week":
		engine, err = loadTypicalWeekScenario()
	case "leave-and-holiday":
		engine, err = loadLeaveAndHolidayScenario()
	case "planning-window":
		engine, err = loadPlanningWindowScenario()
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.setEngine(engine, req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const demoPerson = "demo"

// demoOverheadConfig is the shared overhead shape for scenarios: OPS is the
// overhead project, OPS-7 the meeting bucket, OPS-9 the leave bucket.
func demoOverheadConfig(cycleID string) overhead.Config {
	return overhead.Config{
		ProjectKey: "OPS",
		Baseline:   30 * time.Minute,
		CurrentCycle: overhead.TargetSet{
			Targets: []worklog.Target{overhead.NewTarget("OPS-7", 0)},
			Mode:    worklog.ModeSingle,
		},
		PlanningCycle: overhead.TargetSet{
			Targets: []worklog.Target{
				overhead.NewTarget("OPS-20", 2),
				overhead.NewTarget("OPS-21", 1),
			},
			Mode: worklog.ModeWeighted,
		},
		LeaveTarget:        "OPS-9",
		FallbackTarget:     "OPS-7",
		CycleID:            cycleID,
		PlanningWindowDays: 5,
	}
}

// demoCycleID formats a cycle identifier ending on the given date.
func demoCycleID(end schedule.Date, seq int) string {
	mon := strings.ToUpper(end.Month().String()[:3])
	return fmt.Sprintf("PI.%02d.%d.%s.%02d", end.Year()%100, seq, mon, end.Day())
}

// demoEngine assembles an engine over the given fakes with a pure weekday
// schedule (country ZZ has no holiday calendar, so no feed is consulted).
func demoEngine(ov schedule.Overrides, cfg overhead.Config, dir *worklog.MemoryDirectory, ledger *worklog.MemoryLedger, cal *worklog.MemoryCalendar) (*timesheet.Engine, error) {
	sched := schedule.NewSchedule(schedule.Locale{Country: "ZZ"}, ov, nil)
	engineCfg := timesheet.Config{
		PersonID:    demoPerson,
		DailyTarget: 8 * time.Hour,
		Schedule:    sched,
		Policy:      overhead.NewPolicy(cfg),
		Directory:   dir,
		Ledger:      ledger,
		Notifier:    notify.LogSink{},
		Staleness:   overhead.NewStalenessChecker(overhead.NewMemoryStamps()),
	}
	if cal != nil {
		engineCfg.Calendar = cal
	}
	return timesheet.NewEngine(engineCfg)
}

// nextWorkingDay returns the first weekday strictly after d.
func nextWorkingDay(d schedule.Date) schedule.Date {
	d = d.AddDays(1)
	for d.IsWeekend() {
		d = d.AddDays(1)
	}
	return d
}

// prevWorkingDay returns the last weekday strictly before d.
func prevWorkingDay(d schedule.Date) schedule.Date {
	d = d.AddDays(-1)
	for d.IsWeekend() {
		d = d.AddDays(-1)
	}
	return d
}

func loadTypicalWeekScenario() (*timesheet.Engine, error) {
	today := schedule.Today()
	monday := today.StartOfWeek()
	// Cycle runs well past this week so reconcile splits across active items.
	cycleID := demoCycleID(nextWorkingDay(today.AddDays(21)), 3)

	dir := worklog.NewMemoryDirectory()
	dir.Active = []worklog.WorkItem{
		{Key: "DEMO-101", Title: "Streaming import pipeline", Cycle: cycleID},
		{Key: "DEMO-102", Title: "Retry budget for flaky webhooks", Cycle: cycleID},
	}
	dir.Details["DEMO-101"] = worklog.ItemDetail{
		Title:       "Streaming import pipeline",
		Description: "Replace the batch importer with a streaming pipeline.",
	}
	dir.Details["DEMO-102"] = worklog.ItemDetail{
		Title:       "Retry budget for flaky webhooks",
		Description: "Cap webhook retries with a per-endpoint budget.",
	}
	for d := monday; !d.After(monday.AddDays(4)); d = d.AddDays(1) {
		dir.AsOf[d] = dir.Active
	}

	ledger := worklog.NewMemoryLedger()
	// Monday fully logged across both items.
	ledger.Seed(worklog.LedgerEntry{ItemKey: "DEMO-101", Date: monday, Duration: 4 * time.Hour, Description: "Streaming import pipeline"})
	ledger.Seed(worklog.LedgerEntry{ItemKey: "DEMO-102", Date: monday, Duration: 4 * time.Hour, Description: "Retry budget for flaky webhooks"})
	// Tuesday half logged: one meeting plus three hours of item work.
	tuesday := monday.AddDays(1)
	ledger.Seed(worklog.LedgerEntry{ItemKey: "OPS-7", Date: tuesday, Duration: time.Hour, Description: "Team sync"})
	ledger.Seed(worklog.LedgerEntry{ItemKey: "DEMO-101", Date: tuesday, Duration: 3 * time.Hour, Description: "Streaming import pipeline"})

	cal := worklog.NewMemoryCalendar()
	cal.Events[tuesday] = []worklog.Event{
		{Title: "Design review", Duration: time.Hour},
	}

	return demoEngine(schedule.Overrides{}, demoOverheadConfig(cycleID), dir, ledger, cal)
}

func loadLeaveAndHolidayScenario() (*timesheet.Engine, error) {
	today := schedule.Today()
	leaveDay := nextWorkingDay(today)
	holiday := nextWorkingDay(leaveDay)
	cycleID := demoCycleID(nextWorkingDay(today.AddDays(21)), 3)

	ov := schedule.Overrides{
		Leave:         map[schedule.Date]bool{leaveDay: true},
		AdHocHolidays: map[schedule.Date]bool{holiday: true},
	}

	dir := worklog.NewMemoryDirectory()
	dir.Active = []worklog.WorkItem{
		{Key: "DEMO-201", Title: "Ledger export hardening", Cycle: cycleID},
	}
	dir.Details["DEMO-201"] = worklog.ItemDetail{
		Title:       "Ledger export hardening",
		Description: "Make the nightly export resumable.",
	}

	ledger := worklog.NewMemoryLedger()
	monday := today.StartOfWeek()
	if monday.Before(today) {
		ledger.Seed(worklog.LedgerEntry{ItemKey: "DEMO-201", Date: monday, Duration: 8 * time.Hour, Description: "Ledger export hardening"})
	}

	return demoEngine(ov, demoOverheadConfig(cycleID), dir, ledger, nil)
}

func loadPlanningWindowScenario() (*timesheet.Engine, error) {
	today := schedule.Today()
	// The cycle ended on the last working day before today, which puts
	// today inside the five-day planning window.
	cycleEnd := prevWorkingDay(today)
	cycleID := demoCycleID(cycleEnd, 2)

	dir := worklog.NewMemoryDirectory()
	dir.Active = []worklog.WorkItem{
		{Key: "DEMO-301", Title: "Carryover cleanup", Cycle: cycleID},
	}
	dir.Details["DEMO-301"] = worklog.ItemDetail{Title: "Carryover cleanup"}

	ledger := worklog.NewMemoryLedger()

	return demoEngine(schedule.Overrides{}, demoOverheadConfig(cycleID), dir, ledger, nil)
}
