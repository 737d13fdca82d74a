/*
holiday.go - Holiday datasets and the organization feed refresh protocol

PURPOSE:
  Merges holiday data from three kinds of sources into the lookup the
  calendar resolver consumes:
    1. Organization feed - fetched from a configured URL, cached locally
    2. Locale tables     - bundled country/region calculations (locale.go)
    3. Manual overrides  - ad-hoc dates from the person's config (classify.go)

FEED SCHEMA (JSON):
  {
    "version": "2026.2",
    "holidays": {
      "US": {
        "2026": {
          "common": [{"date": "2026-01-01", "name": "New Year's Day"}],
          "CA":     [{"date": "2026-03-31", "name": "Cesar Chavez Day"}]
        }
      }
    }
  }
  Country keys are ISO codes; per-year sections hold "common" entries that
  apply country-wide plus optional region-keyed entries.

REFRESH PROTOCOL:
  On every Refresh call: fetch the feed from the configured URL, compare
  version markers, overwrite the local cache when the remote version differs.
  Any failure (network, HTTP status, parse) logs a warning and falls back to
  the cached copy. Refresh never returns an error and never aborts a run.

SEE ALSO:
  - locale.go: bundled country/region tables
  - classify.go: priority order consuming the merged lookup
  - fetch.go: HTTP fetcher implementation
*/
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// =============================================================================
// HOLIDAY SETS
// =============================================================================

// Scope tags where a holiday set came from.
type Scope string

const (
	ScopeOrganization  Scope = "organization"
	ScopeLocaleCountry Scope = "locale-country"
	ScopeLocaleRegion  Scope = "locale-region"
	ScopeManual        Scope = "manual"
)

// Holiday is one dated entry with its display label.
type Holiday struct {
	Date  Date
	Label string
}

// HolidaySet is a versioned set of (date, label) pairs from a single scope.
type HolidaySet struct {
	Scope   Scope
	Version string
	days    map[Date]string
}

func NewHolidaySet(scope Scope, version string) *HolidaySet {
	return &HolidaySet{Scope: scope, Version: version, days: make(map[Date]string)}
}

func (s *HolidaySet) Add(d Date, label string) {
	// First writer wins so merge order decides precedence between sources.
	if _, exists := s.days[d]; !exists {
		s.days[d] = label
	}
}

func (s *HolidaySet) Lookup(d Date) (string, bool) {
	label, ok := s.days[d]
	return label, ok
}

func (s *HolidaySet) Len() int { return len(s.days) }

func (s *HolidaySet) Holidays() []Holiday {
	out := make([]Holiday, 0, len(s.days))
	for d, label := range s.days {
		out = append(out, Holiday{Date: d, Label: label})
	}
	return out
}

// MergeSets combines sets left to right; earlier sets win on date conflicts.
func MergeSets(scope Scope, sets ...*HolidaySet) *HolidaySet {
	merged := NewHolidaySet(scope, "")
	for _, s := range sets {
		if s == nil {
			continue
		}
		for d, label := range s.days {
			merged.Add(d, label)
		}
	}
	return merged
}

// =============================================================================
// LOCALE
// =============================================================================

// Locale scopes holiday data to a person's country and optional region.
type Locale struct {
	Country string // ISO code, e.g. "US", "IN"
	Region  string // subdivision code, e.g. "CA", "MH"; empty = none
}

func (l Locale) String() string {
	if l.Region == "" {
		return l.Country
	}
	return l.Country + "-" + l.Region
}

// =============================================================================
// ORGANIZATION FEED
// =============================================================================

// FeedHoliday is one wire-format entry.
type FeedHoliday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// Feed is the decoded organization dataset:
// country -> year -> ("common" | region) -> entries.
type Feed struct {
	Version  string                                          `json:"version"`
	Holidays map[string]map[string]map[string][]FeedHoliday `json:"holidays"`
}

// ParseFeed decodes the feed JSON.
func ParseFeed(raw []byte) (Feed, error) {
	var f Feed
	if err := json.Unmarshal(raw, &f); err != nil {
		return Feed{}, fmt.Errorf("parse holiday feed: %w", err)
	}
	return f, nil
}

// OrganizationSet extracts the org holidays for a locale over the given
// years: country-wide "common" entries plus the locale's region section.
// Malformed dates are skipped with a warning rather than failing the set.
func (f Feed) OrganizationSet(loc Locale, years ...int) *HolidaySet {
	set := NewHolidaySet(ScopeOrganization, f.Version)
	country := f.Holidays[loc.Country]
	if country == nil {
		return set
	}
	for _, year := range years {
		sections := country[fmt.Sprintf("%d", year)]
		if sections == nil {
			continue
		}
		addFeedEntries(set, sections["common"])
		if loc.Region != "" {
			addFeedEntries(set, sections[loc.Region])
		}
	}
	return set
}

func addFeedEntries(set *HolidaySet, entries []FeedHoliday) {
	for _, e := range entries {
		d, err := ParseDate(e.Date)
		if err != nil {
			log.Printf("[Holidays] Warning: skipping malformed feed date %q (%s)", e.Date, e.Name)
			continue
		}
		set.Add(d, e.Name)
	}
}

// HasYear reports whether the feed carries any country-wide entries for the
// locale's country in the given year, and separately whether the locale's
// region section is present and non-empty.
func (f Feed) HasYear(loc Locale, year int) (country, region bool) {
	sections := f.Holidays[loc.Country][fmt.Sprintf("%d", year)]
	if sections == nil {
		return false, false
	}
	country = len(sections["common"]) > 0
	if loc.Region == "" {
		region = true
	} else {
		region = len(sections[loc.Region]) > 0
	}
	return country, region
}

// =============================================================================
// SOURCE - fetch + cache orchestration
// =============================================================================

// SourceFetcher retrieves the organization feed from a URL.
// Implemented by HTTPFetcher; tests supply fakes.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (Feed, error)
}

// FeedCache persists the last known good feed across runs.
// Implemented by store/sqlite; MemoryCache serves tests and cache-less setups.
type FeedCache interface {
	// LoadFeed returns the cached payload, or ok=false when none is stored.
	LoadFeed() (version string, raw []byte, ok bool, err error)
	// SaveFeed overwrites the cached payload.
	SaveFeed(version string, raw []byte) error
}

// Source owns the organization feed: it refreshes from the remote URL,
// falls back to the cache, and hands out the current snapshot.
type Source struct {
	url     string
	fetcher SourceFetcher
	cache   FeedCache

	mu   sync.RWMutex
	feed Feed
}

func NewSource(url string, fetcher SourceFetcher, cache FeedCache) *Source {
	return &Source{url: url, fetcher: fetcher, cache: cache}
}

// Refresh runs the refresh protocol. It never fails: every error path keeps
// the previously cached feed in place and logs a warning.
func (s *Source) Refresh(ctx context.Context) {
	cachedVersion, cachedRaw, cached, err := s.cache.LoadFeed()
	if err != nil {
		log.Printf("[Holidays] Warning: holiday cache unreadable: %v", err)
		cached = false
	}

	if s.url == "" || s.fetcher == nil {
		s.useCached(cachedRaw, cached)
		return
	}

	remote, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		log.Printf("[Holidays] Warning: feed fetch failed, using cached data: %v", err)
		s.useCached(cachedRaw, cached)
		return
	}

	if cached && remote.Version == cachedVersion {
		s.useCached(cachedRaw, cached)
		return
	}

	raw, err := json.Marshal(remote)
	if err != nil {
		log.Printf("[Holidays] Warning: feed re-encode failed, using cached data: %v", err)
		s.useCached(cachedRaw, cached)
		return
	}
	if err := s.cache.SaveFeed(remote.Version, raw); err != nil {
		log.Printf("[Holidays] Warning: holiday cache write failed: %v", err)
	} else {
		log.Printf("[Holidays] Updated holiday data to version %q", remote.Version)
	}

	s.mu.Lock()
	s.feed = remote
	s.mu.Unlock()
}

func (s *Source) useCached(raw []byte, ok bool) {
	if !ok {
		return
	}
	feed, err := ParseFeed(raw)
	if err != nil {
		log.Printf("[Holidays] Warning: cached feed unparseable: %v", err)
		return
	}
	s.mu.Lock()
	s.feed = feed
	s.mu.Unlock()
}

// Feed returns the current snapshot. Zero value when nothing loaded yet.
func (s *Source) Feed() Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// YearEndWarnings flags missing next-year coverage while running in the
// final month of the year. Country and region coverage are reported
// separately; outside December it returns nothing.
func (s *Source) YearEndWarnings(now Date, loc Locale) []string {
	if now.Month() != time.December {
		return nil
	}
	next := now.Year() + 1
	country, region := s.Feed().HasYear(loc, next)

	var warnings []string
	if !country {
		warnings = append(warnings,
			fmt.Sprintf("holiday data for %s has no %d entries yet", loc.Country, next))
	}
	if country && !region && loc.Region != "" {
		warnings = append(warnings,
			fmt.Sprintf("holiday data for %s has no %d entries for region %s", loc.Country, next, loc.Region))
	}
	return warnings
}

// MemoryCache is an in-process FeedCache for tests and cache-less setups.
type MemoryCache struct {
	mu      sync.RWMutex
	version string
	raw     []byte
	stored  bool
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (m *MemoryCache) LoadFeed() (string, []byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, m.raw, m.stored, nil
}

func (m *MemoryCache) SaveFeed(version string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = version
	m.raw = append([]byte(nil), raw...)
	m.stored = true
	return nil
}
