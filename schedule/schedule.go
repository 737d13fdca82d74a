package schedule

import (
	"context"
	"sync"
)

// =============================================================================
// SCHEDULE - aggregate over resolver, holiday source and overrides
// =============================================================================

// Schedule is the live calendar for one person: merged holiday data plus the
// person's override lists, classified through a resolver snapshot that is
// swapped atomically on every change.
type Schedule struct {
	mu        sync.RWMutex
	locale    Locale
	overrides Overrides
	source    *Source
	resolver  *Resolver
	years     map[int]bool // years the snapshot covers; extended on demand
}

// NewSchedule builds a schedule from explicit values. The source may start
// empty; bundled locale tables classify correctly before the first refresh.
func NewSchedule(loc Locale, overrides Overrides, source *Source) *Schedule {
	year := Today().Year()
	s := &Schedule{
		locale:    loc,
		overrides: cloneOverrides(overrides),
		source:    source,
		years:     map[int]bool{year - 1: true, year: true, year + 1: true},
	}
	s.mu.Lock()
	s.rebuildLocked()
	s.mu.Unlock()
	return s
}

// Refresh runs the holiday feed refresh protocol and swaps in a new resolver
// snapshot. Never fails; fetch problems fall back to cached data.
func (s *Schedule) Refresh(ctx context.Context) {
	if s.source != nil {
		s.source.Refresh(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()
}

// Classify returns the verdict for one date from the current snapshot,
// extending the snapshot's year coverage when the date falls outside it.
func (s *Schedule) Classify(d Date) CalendarDay {
	s.mu.RLock()
	if s.years[d.Year()] {
		day := s.resolver.Classify(d)
		s.mu.RUnlock()
		return day
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.years[d.Year()] {
		s.years[d.Year()] = true
		s.rebuildLocked()
	}
	return s.resolver.Classify(d)
}

// IsWorking is a convenience predicate over Classify.
func (s *Schedule) IsWorking(d Date) bool { return s.Classify(d).Working }

// YearEndWarnings reports missing next-year holiday coverage (December only).
func (s *Schedule) YearEndWarnings(now Date) []string {
	if s.source == nil {
		return nil
	}
	return s.source.YearEndWarnings(now, s.locale)
}

func (s *Schedule) Locale() Locale { return s.locale }

// =============================================================================
// OVERRIDE MANAGEMENT
// =============================================================================

// AddLeave marks a date as leave. Returns false when already present.
func (s *Schedule) AddLeave(d Date) bool { return s.setOverride(&s.overrides.Leave, d, true) }

// RemoveLeave unmarks a leave date. Returns false when absent.
func (s *Schedule) RemoveLeave(d Date) bool { return s.setOverride(&s.overrides.Leave, d, false) }

func (s *Schedule) AddAdHocHoliday(d Date) bool {
	return s.setOverride(&s.overrides.AdHocHolidays, d, true)
}

func (s *Schedule) RemoveAdHocHoliday(d Date) bool {
	return s.setOverride(&s.overrides.AdHocHolidays, d, false)
}

// AddCompensatoryWorking marks a weekend or holiday as a working day.
func (s *Schedule) AddCompensatoryWorking(d Date) bool {
	return s.setOverride(&s.overrides.CompensatoryWorking, d, true)
}

func (s *Schedule) RemoveCompensatoryWorking(d Date) bool {
	return s.setOverride(&s.overrides.CompensatoryWorking, d, false)
}

// Overrides returns a copy of the current override lists for persistence.
func (s *Schedule) Overrides() Overrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOverrides(s.overrides)
}

func (s *Schedule) setOverride(set *map[Date]bool, d Date, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *set == nil {
		*set = make(map[Date]bool)
	}
	if add {
		if (*set)[d] {
			return false
		}
		(*set)[d] = true
	} else {
		if !(*set)[d] {
			return false
		}
		delete(*set, d)
	}
	s.rebuildLocked()
	return true
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func (s *Schedule) rebuildLocked() {
	years := make([]int, 0, len(s.years))
	for y := range s.years {
		years = append(years, y)
	}

	var org *HolidaySet
	if s.source != nil {
		org = s.source.Feed().OrganizationSet(s.locale, years...)
	}
	locale := LocaleSet(s.locale, years...)
	s.resolver = NewResolver(cloneOverrides(s.overrides), org, locale)
}

func cloneOverrides(o Overrides) Overrides {
	return Overrides{
		Leave:               cloneDateSet(o.Leave),
		AdHocHolidays:       cloneDateSet(o.AdHocHolidays),
		CompensatoryWorking: cloneDateSet(o.CompensatoryWorking),
	}
}

func cloneDateSet(set map[Date]bool) map[Date]bool {
	out := make(map[Date]bool, len(set))
	for d, v := range set {
		if v {
			out[d] = true
		}
	}
	return out
}

// =============================================================================
// WORKING-DAY SCANS
// =============================================================================

// WorkingDays counts working dates in [from, to] inclusive.
func (s *Schedule) WorkingDays(from, to Date) int {
	count := 0
	for d := from; !d.After(to); d = d.AddDays(1) {
		if s.IsWorking(d) {
			count++
		}
	}
	return count
}

// WorkingDatesAfter returns the first n working dates strictly after start,
// scanning at most scanCap calendar days.
func WorkingDatesAfter(start Date, n, scanCap int, isWorking func(Date) bool) []Date {
	var out []Date
	for i := 1; i <= scanCap && len(out) < n; i++ {
		d := start.AddDays(i)
		if isWorking(d) {
			out = append(out, d)
		}
	}
	return out
}
