package schedule

import "time"

// MonthView is a whole month classified day by day, for calendar rendering.
type MonthView struct {
	Year        int
	Month       time.Month
	Days        []CalendarDay
	WorkingDays int
}

// MonthCalendar classifies every day of a month against the current
// snapshot.
func (s *Schedule) MonthCalendar(year int, month time.Month) MonthView {
	view := MonthView{Year: year, Month: month}
	first := NewDate(year, month, 1)
	for d := first; d.Month() == month; d = d.AddDays(1) {
		day := s.Classify(d)
		view.Days = append(view.Days, day)
		if day.Working {
			view.WorkingDays++
		}
	}
	return view
}
