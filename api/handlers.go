/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the engine via a small REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Status:
    GET    /api/status                Engine identity and today's verdict

  Calendar:
    GET    /api/calendar/classify     Classify one date (?date=)
    GET    /api/calendar/month        Month view (?year=&month=)

  Schedule overrides:
    GET    /api/schedule/overrides    Current override lists
    POST   /api/schedule/overrides    Add an override {kind, date}
    DELETE /api/schedule/overrides    Remove an override {kind, date}

  Runs:
    GET    /api/runs                  Recent journaled runs (?limit=)
    GET    /api/runs/{id}             One run with day detail
    POST   /api/runs/reconcile        Run reconcile {date?}
    POST   /api/runs/verify           Run verify {from?, to?}
    POST   /api/runs/submit           Run month submission {year?, month?, force?}

  Config:
    GET    /api/config/overhead       Redacted overhead policy

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: A run is already in progress
  - 502: Upstream service failure (tracker/ledger auth or outage)
  - 500: Everything else

SECURITY NOTE:
  No authentication. The listener binds to localhost.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. The engine reference is
// swappable so demo scenarios can stand in a fake-backed engine.
type Handler struct {
	Journal   timesheet.RunJournal
	Scheduler *Scheduler

	// Persist, when set, is called with the new override lists after every
	// successful schedule edit. The serve command wires it to the config
	// file.
	Persist func(schedule.Overrides) error

	// AllowScenarios gates the demo endpoints; off for a real engine.
	AllowScenarios bool

	mu              sync.RWMutex
	engine          *timesheet.Engine
	currentScenario string
}

// NewHandler creates a new handler around an engine and a run journal.
// Attach a Scheduler before serving.
func NewHandler(engine *timesheet.Engine, journal timesheet.RunJournal) *Handler {
	return &Handler{Journal: journal, engine: engine}
}

// Engine returns the current engine.
func (h *Handler) Engine() *timesheet.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

func (h *Handler) setEngine(engine *timesheet.Engine, scenario string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.engine = engine
	h.currentScenario = scenario
}

// =============================================================================
// STATUS AND CALENDAR
// =============================================================================

// GetStatus returns the engine identity and today's classification.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	engine := h.Engine()
	today := schedule.Today()
	day := engine.Classify(today)

	writeJSON(w, http.StatusOK, StatusDTO{
		Person:           engine.PersonID(),
		Locale:           engine.Schedule().Locale().String(),
		DailyTargetHours: hoursOf(engine.DailyTarget()),
		Today:            today.String(),
		TodayKind:        string(day.Kind),
		Overhead:         engine.DescribeOverheadConfig(),
	})
}

// ClassifyDate returns the calendar verdict for one date.
func (h *Handler) ClassifyDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r.URL.Query().Get("date"), schedule.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	writeJSON(w, http.StatusOK, toClassifyDTO(h.Engine().Classify(date)))
}

// GetMonth returns a classified month calendar.
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	today := schedule.Today()
	year, err := intParam(r.URL.Query().Get("year"), today.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := intParam(r.URL.Query().Get("month"), int(today.Month()))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month (1-12)", err)
		return
	}

	engine := h.Engine()
	view := engine.Schedule().MonthCalendar(year, time.Month(month))

	dto := MonthDTO{
		Year:          view.Year,
		Month:         int(view.Month),
		WorkingDays:   view.WorkingDays,
		ExpectedHours: hoursOf(time.Duration(view.WorkingDays) * engine.DailyTarget()),
	}
	for _, day := range view.Days {
		dto.Days = append(dto.Days, toClassifyDTO(day))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SCHEDULE OVERRIDES
// =============================================================================

// ListOverrides returns the current override date lists.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toOverridesDTO(h.Engine().Schedule().Overrides()))
}

// AddOverride marks a date as leave, ad-hoc holiday or compensatory working.
func (h *Handler) AddOverride(w http.ResponseWriter, r *http.Request) {
	h.editOverride(w, r, true)
}

// RemoveOverride unmarks an override date.
func (h *Handler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	h.editOverride(w, r, false)
}

func (h *Handler) editOverride(w http.ResponseWriter, r *http.Request, add bool) {
	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	sched := h.Engine().Schedule()
	var changed bool
	switch req.Kind {
	case "leave":
		if add {
			changed = sched.AddLeave(date)
		} else {
			changed = sched.RemoveLeave(date)
		}
	case "holiday":
		if add {
			changed = sched.AddAdHocHoliday(date)
		} else {
			changed = sched.RemoveAdHocHoliday(date)
		}
	case "working":
		if add {
			changed = sched.AddCompensatoryWorking(date)
		} else {
			changed = sched.RemoveCompensatoryWorking(date)
		}
	default:
		writeError(w, http.StatusBadRequest, "Unknown override kind (leave, holiday, working)", nil)
		return
	}

	if changed && h.Persist != nil {
		if err := h.Persist(sched.Overrides()); err != nil {
			writeError(w, http.StatusInternalServerError, "Override applied but not persisted", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changed":   changed,
		"overrides": toOverridesDTO(sched.Overrides()),
	})
}

func toOverridesDTO(o schedule.Overrides) OverridesDTO {
	return OverridesDTO{
		Leave:               dateStrings(o.Leave),
		AdHocHolidays:       dateStrings(o.AdHocHolidays),
		CompensatoryWorking: dateStrings(o.CompensatoryWorking),
	}
}

// =============================================================================
// RUNS
// =============================================================================

// ListRuns returns recent journaled runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	runs, err := h.Journal.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run by id.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, ok, err := h.Journal.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// TriggerReconcile runs a reconcile for one date (default today).
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := dateParam(req.Date, schedule.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	run, runErr := h.Scheduler.RunReconcile(r.Context(), date, timesheet.TriggerAPI)
	if runErr != nil {
		writeError(w, statusForError(runErr), "Reconcile run failed", runErr)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// TriggerVerify runs a verify over a range (default the week so far).
func (h *Handler) TriggerVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	today := schedule.Today()
	from, err := dateParam(req.From, today.StartOfWeek())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := dateParam(req.To, today)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	run, report, runErr := h.Scheduler.RunVerify(r.Context(), from, to, timesheet.TriggerAPI)
	if runErr != nil {
		writeError(w, statusForError(runErr), "Verify run failed", runErr)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{
		Run:            toRunDTO(run),
		ExpectedHours:  hoursOf(report.Expected),
		ActualHours:    hoursOf(report.Actual()),
		ShortfallHours: hoursOf(report.Shortfall()),
	})
}

// TriggerSubmit runs a month submission (default the current month).
func (h *Handler) TriggerSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	today := schedule.Today()
	if req.Year == 0 {
		req.Year = today.Year()
	}
	if req.Month == 0 {
		req.Month = int(today.Month())
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month (1-12)", nil)
		return
	}

	run, sub, runErr := h.Scheduler.RunSubmit(r.Context(), req.Year, time.Month(req.Month), req.Force, timesheet.TriggerAPI)
	if runErr != nil {
		writeError(w, statusForError(runErr), "Submit run failed", runErr)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{
		Run:           toRunDTO(run),
		Period:        sub.Period,
		Submitted:     sub.Submitted,
		Reason:        sub.Reason,
		ExpectedHours: hoursOf(sub.Expected),
		ActualHours:   hoursOf(sub.Actual),
	})
}

// =============================================================================
// CONFIG
// =============================================================================

// GetOverheadConfig returns the redacted overhead policy.
func (h *Handler) GetOverheadConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine().DescribeOverheadConfig())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case worklog.IsValidation(err):
		return http.StatusBadRequest
	case worklog.IsNotFound(err):
		return http.StatusNotFound
	case worklog.IsAuthentication(err), worklog.IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptional decodes a JSON body, treating an empty body as the zero
// request.
func decodeOptional(r *http.Request, out any) error {
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func dateParam(value string, fallback schedule.Date) (schedule.Date, error) {
	if value == "" {
		return fallback, nil
	}
	return schedule.ParseDate(value)
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func dateStrings(set map[schedule.Date]bool) []string {
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d.String())
	}
	sort.Strings(out)
	return out
}
