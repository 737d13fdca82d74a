package schedule

import "time"

// =============================================================================
// BUNDLED LOCALE TABLES
// =============================================================================
// Country and region holiday calculations that work offline, merged beneath
// the organization feed by the resolver. Movable religious dates are not
// computed here; organizations carry those in their feed.

// LocaleSet returns the bundled holidays for a locale over the given years,
// country-wide entries merged with the locale's region table. Unsupported
// locales yield an empty set.
func LocaleSet(loc Locale, years ...int) *HolidaySet {
	sets := make([]*HolidaySet, 0, 2*len(years))
	for _, year := range years {
		sets = append(sets, CountrySet(loc.Country, year))
		if loc.Region != "" {
			sets = append(sets, RegionSet(loc.Country, loc.Region, year))
		}
	}
	return MergeSets(ScopeLocaleCountry, sets...)
}

// CountrySet returns the country-wide table for one year.
func CountrySet(country string, year int) *HolidaySet {
	set := NewHolidaySet(ScopeLocaleCountry, "")
	switch country {
	case "US":
		usFederal(set, year)
	case "IN":
		inNational(set, year)
	}
	return set
}

// RegionSet returns region-specific entries for one year.
func RegionSet(country, region string, year int) *HolidaySet {
	set := NewHolidaySet(ScopeLocaleRegion, "")
	if country != "IN" {
		return set
	}
	switch region {
	case "MH":
		set.Add(NewDate(year, time.May, 1), "Maharashtra Day")
	case "TG":
		set.Add(NewDate(year, time.June, 2), "Telangana Formation Day")
	case "GJ":
		set.Add(NewDate(year, time.May, 1), "Gujarat Day")
	}
	return set
}

func usFederal(set *HolidaySet, year int) {
	addObserved(set, NewDate(year, time.January, 1), "New Year's Day")
	set.Add(nthWeekday(year, time.January, time.Monday, 3), "Martin Luther King Jr. Day")
	set.Add(nthWeekday(year, time.February, time.Monday, 3), "Washington's Birthday")
	set.Add(lastWeekday(year, time.May, time.Monday), "Memorial Day")
	if year >= 2021 {
		addObserved(set, NewDate(year, time.June, 19), "Juneteenth National Independence Day")
	}
	addObserved(set, NewDate(year, time.July, 4), "Independence Day")
	set.Add(nthWeekday(year, time.September, time.Monday, 1), "Labor Day")
	set.Add(nthWeekday(year, time.October, time.Monday, 2), "Columbus Day")
	addObserved(set, NewDate(year, time.November, 11), "Veterans Day")
	set.Add(nthWeekday(year, time.November, time.Thursday, 4), "Thanksgiving Day")
	addObserved(set, NewDate(year, time.December, 25), "Christmas Day")
}

func inNational(set *HolidaySet, year int) {
	set.Add(NewDate(year, time.January, 26), "Republic Day")
	set.Add(NewDate(year, time.August, 15), "Independence Day")
	set.Add(NewDate(year, time.October, 2), "Gandhi Jayanti")
	set.Add(NewDate(year, time.December, 25), "Christmas Day")
}

// addObserved adds a fixed-date holiday plus its observed weekday when the
// date lands on a weekend: Saturday observes Friday, Sunday observes Monday.
func addObserved(set *HolidaySet, d Date, label string) {
	set.Add(d, label)
	switch d.Weekday() {
	case time.Saturday:
		set.Add(d.AddDays(-1), label+" (observed)")
	case time.Sunday:
		set.Add(d.AddDays(1), label+" (observed)")
	}
}

// nthWeekday returns the n-th given weekday of a month (n starts at 1).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) Date {
	first := NewDate(year, month, 1)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDays(offset + 7*(n-1))
}

// lastWeekday returns the final given weekday of a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) Date {
	last := NewDate(year, month, 1).EndOfMonth()
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDays(-offset)
}
