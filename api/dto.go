/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS ON THE WIRE:
  Dates are "2006-01-02" strings, timestamps RFC3339, durations decimal
  hours rounded to two places. Nothing downstream does arithmetic on the
  hour values; exact seconds live only inside the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - timesheet/report.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// StatusDTO summarizes the running engine.
type StatusDTO struct {
	Person           string               `json:"person"`
	Locale           string               `json:"locale"`
	DailyTargetHours float64              `json:"daily_target_hours"`
	Today            string               `json:"today"`
	TodayKind        string               `json:"today_kind"`
	Overhead         overhead.Description `json:"overhead"`
}

// ClassifyDTO is one date's calendar verdict.
type ClassifyDTO struct {
	Date    string `json:"date"`
	Working bool   `json:"working"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}

// MonthDTO is a classified month for calendar rendering.
type MonthDTO struct {
	Year          int           `json:"year"`
	Month         int           `json:"month"`
	Days          []ClassifyDTO `json:"days"`
	WorkingDays   int           `json:"working_days"`
	ExpectedHours float64       `json:"expected_hours"`
}

// OverridesDTO lists the schedule override dates.
type OverridesDTO struct {
	Leave               []string `json:"leave"`
	AdHocHolidays       []string `json:"ad_hoc_holidays"`
	CompensatoryWorking []string `json:"compensatory_working"`
}

// EntryDTO is one created ledger entry.
type EntryDTO struct {
	ID          string  `json:"id,omitempty"`
	Key         string  `json:"key"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description,omitempty"`
	Origin      string  `json:"origin,omitempty"`
}

// DaySummaryDTO is one day's run outcome.
type DaySummaryDTO struct {
	Date          string     `json:"date"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	ExistingHours float64    `json:"existing_hours"`
	AddedHours    float64    `json:"added_hours"`
	Deleted       int        `json:"deleted,omitempty"`
	Created       []EntryDTO `json:"created,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// RunDTO is a journaled run.
type RunDTO struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Trigger    string          `json:"trigger"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Days       []DaySummaryDTO `json:"days,omitempty"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at,omitempty"`
}

// VerifyResponse wraps a verify run with its range totals.
type VerifyResponse struct {
	Run            RunDTO  `json:"run"`
	ExpectedHours  float64 `json:"expected_hours"`
	ActualHours    float64 `json:"actual_hours"`
	ShortfallHours float64 `json:"shortfall_hours"`
}

// SubmitResponse wraps a submit run with the submission outcome.
type SubmitResponse struct {
	Run           RunDTO  `json:"run"`
	Period        string  `json:"period"`
	Submitted     bool    `json:"submitted"`
	Reason        string  `json:"reason,omitempty"`
	ExpectedHours float64 `json:"expected_hours"`
	ActualHours   float64 `json:"actual_hours"`
}

// ScenarioDTO describes one demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the error body for all non-2xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// OverrideRequest names one override date.
type OverrideRequest struct {
	// Kind is "leave", "holiday" or "working".
	Kind string `json:"kind"`
	Date string `json:"date"`
}

// ReconcileRequest triggers a reconcile run. Date defaults to today.
type ReconcileRequest struct {
	Date string `json:"date,omitempty"`
}

// VerifyRequest triggers a verify run. Defaults to the current week so far.
type VerifyRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// SubmitRequest triggers a month submission. Year/month default to the
// current month.
type SubmitRequest struct {
	Year  int  `json:"year,omitempty"`
	Month int  `json:"month,omitempty"`
	Force bool `json:"force,omitempty"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// DOMAIN -> DTO MAPPING
// =============================================================================

func hoursOf(d time.Duration) float64 {
	return worklog.Hours(d).Round(2).InexactFloat64()
}

func toClassifyDTO(day schedule.CalendarDay) ClassifyDTO {
	return ClassifyDTO{
		Date:    day.Date.String(),
		Working: day.Working,
		Kind:    string(day.Kind),
		Reason:  day.Reason,
	}
}

func toDayDTO(day timesheet.DaySummary) DaySummaryDTO {
	dto := DaySummaryDTO{
		Date:          day.Date.String(),
		Status:        string(day.Status),
		Reason:        day.Reason,
		ExistingHours: hoursOf(day.Existing),
		AddedHours:    hoursOf(day.Added),
		Deleted:       day.DeletedCount,
		Warnings:      day.Warnings,
	}
	for _, entry := range day.Created {
		dto.Created = append(dto.Created, EntryDTO{
			ID:          entry.ID,
			Key:         entry.ItemKey,
			Hours:       hoursOf(entry.Duration),
			Description: entry.Description,
			Origin:      string(entry.Origin),
		})
	}
	return dto
}

func toRunDTO(run timesheet.SyncRun) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Trigger:   string(run.Trigger),
		From:      run.From.String(),
		To:        run.To.String(),
		Status:    string(run.Status),
		Error:     run.Error,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		dto.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	for _, day := range run.Days {
		dto.Days = append(dto.Days, toDayDTO(day))
	}
	return dto
}
