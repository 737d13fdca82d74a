package overhead

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// WORK CYCLES
// =============================================================================

const (
	defaultPlanningWindowDays = 5
	// planningScanCapDays bounds the calendar scan for the window end, so a
	// stretch of holidays cannot push the window arbitrarily far out.
	planningScanCapDays = 14
)

// Cycle identifiers look like "PI.26.3.SEP.15": a two-digit year, a sequence
// number, a month abbreviation and the cycle's end day.
var cycleRe = regexp.MustCompile(`PI\.(\d{2})\.(\d+)\.([A-Z]{3})\.(\d{1,2})`)

var monthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Cycle is a parsed work-cycle identifier with its end date.
type Cycle struct {
	ID  string
	End schedule.Date
}

// ParseCycle extracts a cycle identifier from raw text. Returns false when
// no identifier is present or its date parts are invalid.
func ParseCycle(raw string) (Cycle, bool) {
	m := cycleRe.FindStringSubmatch(raw)
	if m == nil {
		return Cycle{}, false
	}
	month, ok := monthAbbrev[m[3]]
	if !ok {
		return Cycle{}, false
	}
	yy, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[4])
	year := 2000 + yy

	end := schedule.NewDate(year, month, day)
	if end.Day() != day || end.Month() != month {
		// time.Date normalized an out-of-range day, e.g. FEB.30.
		return Cycle{}, false
	}
	return Cycle{ID: m[0], End: end}, true
}

// CycleOf reads an item's cycle: the dedicated cycle field when the tracker
// fills it, else the item title.
func CycleOf(item worklog.WorkItem) (Cycle, bool) {
	if c, ok := ParseCycle(item.Cycle); ok {
		return c, true
	}
	return ParseCycle(item.Title)
}

// PlanningWindowEnd returns the last date of the cycle's planning window:
// the n-th working day strictly after the cycle end, scanning at most 14
// calendar days. ok is false when no working day exists inside the cap.
func PlanningWindowEnd(c Cycle, windowDays int, isWorking func(schedule.Date) bool) (schedule.Date, bool) {
	dates := schedule.WorkingDatesAfter(c.End, windowDays, planningScanCapDays, isWorking)
	if len(dates) == 0 {
		return schedule.Date{}, false
	}
	return dates[len(dates)-1], true
}

// InPlanningWindow reports whether d falls in the cycle's planning window:
// strictly after the cycle end, at or before the window end.
func InPlanningWindow(d schedule.Date, c Cycle, windowDays int, isWorking func(schedule.Date) bool) bool {
	end, ok := PlanningWindowEnd(c, windowDays, isWorking)
	if !ok {
		return false
	}
	return d.After(c.End) && !d.After(end)
}

func (c Cycle) String() string {
	return fmt.Sprintf("%s (ends %s)", c.ID, c.End)
}
