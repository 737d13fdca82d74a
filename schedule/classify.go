package schedule

// =============================================================================
// CALENDAR RESOLVER
// =============================================================================

// DayKind is the classification bucket a date falls into.
type DayKind string

const (
	KindWorking      DayKind = "working"
	KindWeekend      DayKind = "weekend"
	KindLeave        DayKind = "leave"
	KindHoliday      DayKind = "holiday"
	KindCompensatory DayKind = "compensatory-working"
)

// CalendarDay is a date's work-obligation verdict. Derived on demand, never
// persisted.
type CalendarDay struct {
	Date    Date
	Working bool
	Kind    DayKind
	Reason  string
}

// Overrides are the person's manual date lists. The three sets are
// independent; Classify tie-breaks overlaps by its fixed priority order.
type Overrides struct {
	Leave               map[Date]bool
	AdHocHolidays       map[Date]bool
	CompensatoryWorking map[Date]bool
}

// Resolver classifies dates against a fixed snapshot of overrides and merged
// holiday sets. It holds no mutable state; swap the whole resolver to pick up
// new data.
type Resolver struct {
	overrides Overrides
	org       *HolidaySet
	locale    *HolidaySet
}

func NewResolver(overrides Overrides, org, locale *HolidaySet) *Resolver {
	return &Resolver{overrides: overrides, org: org, locale: locale}
}

// Classify returns exactly one verdict per date, first match wins:
//
//	1. compensatory working override  -> working (beats weekends and holidays)
//	2. leave override                 -> non-working
//	3. Saturday/Sunday                -> non-working
//	4. organization holiday           -> non-working
//	5. locale holiday                 -> non-working
//	6. ad-hoc holiday override        -> non-working
//	7. default                        -> working
//
// Pure and total: no error, no panic, for any date value.
func (r *Resolver) Classify(d Date) CalendarDay {
	if r.overrides.CompensatoryWorking[d] {
		return CalendarDay{Date: d, Working: true, Kind: KindCompensatory, Reason: "compensatory working day"}
	}
	if r.overrides.Leave[d] {
		return CalendarDay{Date: d, Working: false, Kind: KindLeave, Reason: "leave"}
	}
	if d.IsWeekend() {
		return CalendarDay{Date: d, Working: false, Kind: KindWeekend, Reason: "weekend"}
	}
	if r.org != nil {
		if label, ok := r.org.Lookup(d); ok {
			return CalendarDay{Date: d, Working: false, Kind: KindHoliday, Reason: "organization holiday: " + label}
		}
	}
	if r.locale != nil {
		if label, ok := r.locale.Lookup(d); ok {
			return CalendarDay{Date: d, Working: false, Kind: KindHoliday, Reason: "locale holiday: " + label}
		}
	}
	if r.overrides.AdHocHolidays[d] {
		return CalendarDay{Date: d, Working: false, Kind: KindHoliday, Reason: "ad-hoc holiday"}
	}
	return CalendarDay{Date: d, Working: true, Kind: KindWorking, Reason: "default"}
}
