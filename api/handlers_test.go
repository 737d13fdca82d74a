/*
handlers_test.go - HTTP tests for the API handlers

Tests drive the chi router through httptest with an engine built over
in-memory fakes, so no tracker or ledger service is needed.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type fixture struct {
	handler *Handler
	router  http.Handler
	ledger  *worklog.MemoryLedger
	dir     *worklog.MemoryDirectory
	journal *timesheet.MemoryJournal
}

type silentSink struct{}

func (silentSink) Notify(title, body string) {}

// newFixture builds a handler over memory fakes with a pure weekday
// schedule (country ZZ has no holiday calendar).
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := worklog.NewMemoryDirectory()
	dir.Active = []worklog.WorkItem{{Key: "DEV-1", Title: "Importer"}}
	dir.Details["DEV-1"] = worklog.ItemDetail{Title: "Importer"}

	ledger := worklog.NewMemoryLedger()

	policy := overhead.NewPolicy(overhead.Config{
		ProjectKey: "OPS",
		CurrentCycle: overhead.TargetSet{
			Targets: []worklog.Target{overhead.NewTarget("OPS-7", 0)},
			Mode:    worklog.ModeSingle,
		},
		LeaveTarget:    "OPS-9",
		FallbackTarget: "OPS-7",
	})

	engine, err := timesheet.NewEngine(timesheet.Config{
		PersonID:    "demo",
		DailyTarget: 8 * time.Hour,
		Schedule:    schedule.NewSchedule(schedule.Locale{Country: "ZZ"}, schedule.Overrides{}, nil),
		Policy:      policy,
		Directory:   dir,
		Ledger:      ledger,
		Notifier:    silentSink{},
	})
	require.NoError(t, err)

	journal := timesheet.NewMemoryJournal()
	h := NewHandler(engine, journal)
	h.Scheduler = NewScheduler(h, journal)

	return &fixture{
		handler: h,
		router:  NewRouter(h),
		ledger:  ledger,
		dir:     dir,
		journal: journal,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// =============================================================================
// STATUS AND CALENDAR
// =============================================================================

func TestGetStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	status := decodeBody[StatusDTO](t, rec)
	assert.Equal(t, "demo", status.Person)
	assert.Equal(t, "ZZ", status.Locale)
	assert.Equal(t, 8.0, status.DailyTargetHours)
	assert.Equal(t, schedule.Today().String(), status.Today)
	assert.NotEmpty(t, status.TodayKind)
	assert.Equal(t, "OPS", status.Overhead.ProjectKey)
}

func TestClassifyDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/classify?date=2026-01-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	day := decodeBody[ClassifyDTO](t, rec)
	assert.Equal(t, "2026-01-03", day.Date)
	assert.False(t, day.Working)
	assert.Equal(t, string(schedule.KindWeekend), day.Kind)

	rec = f.do(t, http.MethodGet, "/api/calendar/classify?date=2026-01-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	day = decodeBody[ClassifyDTO](t, rec)
	assert.True(t, day.Working)
	assert.Equal(t, string(schedule.KindWorking), day.Kind)
}

func TestClassifyDateRejectsBadDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/classify?date=not-a-date", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "Invalid date")
}

func TestGetMonth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/month?year=2026&month=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	month := decodeBody[MonthDTO](t, rec)
	assert.Equal(t, 2026, month.Year)
	assert.Equal(t, 1, month.Month)
	assert.Len(t, month.Days, 31)
	assert.Equal(t, 22, month.WorkingDays)
	assert.Equal(t, 176.0, month.ExpectedHours)
}

func TestGetMonthRejectsBadMonth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/month?year=2026&month=13", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCHEDULE OVERRIDES
// =============================================================================

func TestOverrideLifecycle(t *testing.T) {
	f := newFixture(t)

	persisted := 0
	f.handler.Persist = func(schedule.Overrides) error {
		persisted++
		return nil
	}

	rec := f.do(t, http.MethodPost, "/api/schedule/overrides", OverrideRequest{Kind: "leave", Date: "2026-01-05"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Changed   bool         `json:"changed"`
		Overrides OverridesDTO `json:"overrides"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, []string{"2026-01-05"}, resp.Overrides.Leave)
	assert.Equal(t, 1, persisted)

	// Adding the same date again is a no-op and does not persist.
	rec = f.do(t, http.MethodPost, "/api/schedule/overrides", OverrideRequest{Kind: "leave", Date: "2026-01-05"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Changed)
	assert.Equal(t, 1, persisted)

	// The classification now reflects the override.
	rec = f.do(t, http.MethodGet, "/api/calendar/classify?date=2026-01-05", nil)
	day := decodeBody[ClassifyDTO](t, rec)
	assert.Equal(t, string(schedule.KindLeave), day.Kind)

	rec = f.do(t, http.MethodDelete, "/api/schedule/overrides", OverrideRequest{Kind: "leave", Date: "2026-01-05"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Changed)
	assert.Empty(t, resp.Overrides.Leave)
	assert.Equal(t, 2, persisted)
}

func TestOverrideUnknownKind(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/schedule/overrides", OverrideRequest{Kind: "vacation", Date: "2026-01-05"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "Unknown override kind")
}

func TestOverridePersistFailure(t *testing.T) {
	f := newFixture(t)
	f.handler.Persist = func(schedule.Overrides) error {
		return assert.AnError
	}

	rec := f.do(t, http.MethodPost, "/api/schedule/overrides", OverrideRequest{Kind: "holiday", Date: "2026-01-06"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "not persisted")
}

// =============================================================================
// RUNS
// =============================================================================

func TestListAndGetRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run := timesheet.SyncRun{
		ID:        "run-1",
		Kind:      timesheet.RunReconcile,
		Trigger:   timesheet.TriggerManual,
		From:      schedule.NewDate(2026, time.January, 5),
		To:        schedule.NewDate(2026, time.January, 5),
		Status:    timesheet.RunCompleted,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, f.journal.SaveRun(ctx, run))

	rec := f.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeBody[[]RunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "reconcile", runs[0].Kind)

	rec = f.do(t, http.MethodGet, "/api/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[RunDTO](t, rec)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "2026-01-05", got.From)

	rec = f.do(t, http.MethodGet, "/api/runs/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerReconcile(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/runs/reconcile", ReconcileRequest{Date: "2026-01-05"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	run := decodeBody[RunDTO](t, rec)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "api", run.Trigger)
	require.Len(t, run.Days, 1)
	assert.Equal(t, "2026-01-05", run.Days[0].Date)
	assert.Equal(t, 8.0, run.Days[0].AddedHours)
	require.Len(t, run.Days[0].Created, 1)
	assert.Equal(t, "DEV-1", run.Days[0].Created[0].Key)

	// The ledger received the created entry and the journal kept the run.
	assert.Len(t, f.ledger.EntriesOn(schedule.NewDate(2026, time.January, 5)), 1)
	kept, ok, err := f.journal.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, timesheet.RunCompleted, kept.Status)
}

func TestTriggerReconcileWeekend(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/runs/reconcile", ReconcileRequest{Date: "2026-01-03"})
	require.Equal(t, http.StatusOK, rec.Code)

	run := decodeBody[RunDTO](t, rec)
	require.Len(t, run.Days, 1)
	assert.Equal(t, string(timesheet.StatusOffDay), run.Days[0].Status)
	assert.Zero(t, run.Days[0].AddedHours)
}

func TestTriggerReconcileBadDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/runs/reconcile", ReconcileRequest{Date: "2026-13-40"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerVerify(t *testing.T) {
	f := newFixture(t)

	// One fully logged working day: expected == actual.
	day := schedule.NewDate(2026, time.January, 5)
	f.ledger.Seed(worklog.LedgerEntry{ItemKey: "DEV-1", Date: day, Duration: 8 * time.Hour})

	rec := f.do(t, http.MethodPost, "/api/runs/verify", VerifyRequest{From: "2026-01-05", To: "2026-01-05"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	resp := decodeBody[VerifyResponse](t, rec)
	assert.Equal(t, 8.0, resp.ExpectedHours)
	assert.Equal(t, 8.0, resp.ActualHours)
	assert.Zero(t, resp.ShortfallHours)
	assert.Equal(t, "verify", resp.Run.Kind)
	require.Len(t, resp.Run.Days, 1)
	assert.Equal(t, string(timesheet.StatusComplete), resp.Run.Days[0].Status)
}

func TestTriggerSubmitGuard(t *testing.T) {
	f := newFixture(t)

	// A long-past month is never "today", so the last-day guard trips.
	rec := f.do(t, http.MethodPost, "/api/runs/submit", SubmitRequest{Year: 2024, Month: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[SubmitResponse](t, rec)
	assert.False(t, resp.Submitted)
	assert.Contains(t, resp.Reason, "not the last day")
	assert.Empty(t, f.ledger.Submitted)
}

func TestTriggerSubmitForce(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/runs/submit", SubmitRequest{Year: 2024, Month: 1, Force: true})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	resp := decodeBody[SubmitResponse](t, rec)
	assert.True(t, resp.Submitted)
	assert.Equal(t, "2024-01", resp.Period)
	assert.Equal(t, []string{"2024-01"}, f.ledger.Submitted)
}

func TestTriggerSubmitBadMonth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/runs/submit", SubmitRequest{Year: 2026, Month: 13})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunInProgressConflict(t *testing.T) {
	f := newFixture(t)

	f.handler.Scheduler.runMu.Lock()
	f.handler.Scheduler.inFlight = true
	f.handler.Scheduler.runMu.Unlock()

	rec := f.do(t, http.MethodPost, "/api/runs/reconcile", ReconcileRequest{Date: "2026-01-05"})
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Details, "already in progress")
}

func TestRunFailureMapsUpstreamStatus(t *testing.T) {
	f := newFixture(t)
	f.dir.ActiveErr = &worklog.ServiceError{
		Service: "tracker",
		Op:      "list active",
		Status:  503,
		Err:     worklog.ErrTransientNetwork,
	}

	rec := f.do(t, http.MethodPost, "/api/runs/reconcile", ReconcileRequest{Date: "2026-01-05"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// The failed run is still journaled for inspection.
	runs, err := f.journal.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, timesheet.RunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestGetOverheadConfig(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/config/overhead", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	desc := decodeBody[overhead.Description](t, rec)
	assert.Equal(t, "OPS", desc.ProjectKey)
	assert.Equal(t, "OPS-9", desc.LeaveTarget)
}

// =============================================================================
// LANDING PAGE
// =============================================================================

func TestLandingPage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/status")
}
