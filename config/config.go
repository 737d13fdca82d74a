/*
Package config loads, validates and saves the engine configuration file.

PURPOSE:
  One explicit file format for everything the engine needs at startup: who
  the person is, the daily target, locale and schedule overrides, the
  overhead policy, service endpoints and credentials, and local paths. The
  file decodes into plain value structs that are handed to constructors;
  nothing in this package is process-global.

FILE FORMAT:
  JSON or YAML, chosen by file extension (.yaml/.yml is YAML, anything else
  JSON). The two encodings share one schema:

  {
    "daily_target_hours": 8,
    "locale": {"country": "IN", "region": "MH"},
    "holiday_feed_url": "https://example.com/holidays.json",
    "tracker": {
      "base_url": "https://example.atlassian.net",
      "email": "me@example.com",
      "api_token": "...",
      "overhead_project": "OH"
    },
    "ledger": {"api_token": "...", "account_id": ""},
    "overhead": {
      "project_key": "OH",
      "baseline_hours": 0.5,
      "cycle_id": "PI.26.1.JAN.09",
      "leave_target": "OH-12",
      "fallback_target": "OH-1",
      "current_cycle": {"mode": "single", "targets": [{"key": "OH-100"}]},
      "planning_cycle": {"mode": "equal", "targets": [{"key": "OH-200"}]}
    },
    "schedule": {
      "leave": ["2026-01-07"],
      "ad_hoc_holidays": [],
      "compensatory_working": []
    },
    "store_path": "~/.worklog/state.db",
    "listen": "127.0.0.1:4820"
  }

USAGE:
  cfg, err := config.Load(path)
  overrides, err := cfg.BuildOverrides()
  policy := overhead.NewPolicy(mustBuildOverhead(cfg))

  Schedule override edits flow back through SetOverrides + Save, which is how
  "timesheet schedule add leave <date>" persists.

SEE ALSO:
  - overhead/targets.go: the runtime overhead configuration this builds
  - cmd/timesheet: wiring of the loaded values into clients and the engine
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// FILE SCHEMA
// =============================================================================

// Config is the decoded configuration file.
type Config struct {
	DailyTargetHours float64         `json:"daily_target_hours" yaml:"daily_target_hours"`
	Locale           LocaleSection   `json:"locale" yaml:"locale"`
	HolidayFeedURL   string          `json:"holiday_feed_url,omitempty" yaml:"holiday_feed_url,omitempty"`
	Tracker          TrackerSection  `json:"tracker" yaml:"tracker"`
	Ledger           LedgerSection   `json:"ledger" yaml:"ledger"`
	Overhead         OverheadSection `json:"overhead" yaml:"overhead"`
	Schedule         ScheduleSection `json:"schedule" yaml:"schedule"`
	StorePath        string          `json:"store_path,omitempty" yaml:"store_path,omitempty"`
	Listen           string          `json:"listen,omitempty" yaml:"listen,omitempty"`
	NotifierCommand  []string        `json:"notifier_command,omitempty" yaml:"notifier_command,omitempty"`
}

type LocaleSection struct {
	Country string `json:"country" yaml:"country"`
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
}

type TrackerSection struct {
	BaseURL         string   `json:"base_url" yaml:"base_url"`
	Email           string   `json:"email" yaml:"email"`
	APIToken        string   `json:"api_token" yaml:"api_token"`
	ActiveStatuses  []string `json:"active_statuses,omitempty" yaml:"active_statuses,omitempty"`
	OverheadProject string   `json:"overhead_project,omitempty" yaml:"overhead_project,omitempty"`
}

type LedgerSection struct {
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIToken string `json:"api_token" yaml:"api_token"`
	// AccountID attributes ledger entries. Empty means resolve it from the
	// tracker's authenticated identity at startup.
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
}

type OverheadSection struct {
	ProjectKey         string           `json:"project_key,omitempty" yaml:"project_key,omitempty"`
	BaselineHours      float64          `json:"baseline_hours,omitempty" yaml:"baseline_hours,omitempty"`
	CycleID            string           `json:"cycle_id,omitempty" yaml:"cycle_id,omitempty"`
	PlanningWindowDays int              `json:"planning_window_days,omitempty" yaml:"planning_window_days,omitempty"`
	LeaveTarget        string           `json:"leave_target,omitempty" yaml:"leave_target,omitempty"`
	FallbackTarget     string           `json:"fallback_target,omitempty" yaml:"fallback_target,omitempty"`
	CurrentCycle       TargetSetSection `json:"current_cycle,omitempty" yaml:"current_cycle,omitempty"`
	PlanningCycle      TargetSetSection `json:"planning_cycle,omitempty" yaml:"planning_cycle,omitempty"`
}

type TargetSetSection struct {
	Mode    string          `json:"mode,omitempty" yaml:"mode,omitempty"`
	Targets []TargetSection `json:"targets,omitempty" yaml:"targets,omitempty"`
}

type TargetSection struct {
	Key         string  `json:"key" yaml:"key"`
	WeightHours float64 `json:"weight_hours,omitempty" yaml:"weight_hours,omitempty"`
}

type ScheduleSection struct {
	Leave               []string `json:"leave,omitempty" yaml:"leave,omitempty"`
	AdHocHolidays       []string `json:"ad_hoc_holidays,omitempty" yaml:"ad_hoc_holidays,omitempty"`
	CompensatoryWorking []string `json:"compensatory_working,omitempty" yaml:"compensatory_working,omitempty"`
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Default returns the configuration used when a field is absent from the
// file. Credentials have no defaults.
func Default() Config {
	return Config{
		DailyTargetHours: 8,
		Locale:           LocaleSection{Country: "US"},
		Listen:           "127.0.0.1:4820",
	}
}

// Load reads and validates a configuration file. Absent optional fields take
// their Default values.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(raw, &cfg)
	} else {
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration back in the encoding the path's extension
// names. The file is private; it carries credentials.
func Save(path string, cfg Config) error {
	var raw []byte
	var err error
	if isYAML(path) {
		raw, err = yaml.Marshal(cfg)
	} else {
		raw, err = json.MarshalIndent(cfg, "", "  ")
		raw = append(raw, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.DailyTargetHours == 0 {
		c.DailyTargetHours = def.DailyTargetHours
	}
	if c.Locale.Country == "" {
		c.Locale.Country = def.Locale.Country
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Overhead.ProjectKey == "" {
		c.Overhead.ProjectKey = c.Tracker.OverheadProject
	}
	if c.Tracker.OverheadProject == "" {
		c.Tracker.OverheadProject = c.Overhead.ProjectKey
	}
}

// Validate checks structural validity. Credential presence is checked where
// clients are built, not here; read-only commands run without them.
func (c Config) Validate() error {
	if c.DailyTargetHours <= 0 || c.DailyTargetHours > 24 {
		return &worklog.ValidationError{Field: "daily_target_hours", Message: "must be in (0, 24]"}
	}
	if c.Locale.Country == "" {
		return &worklog.ValidationError{Field: "locale.country", Message: "required"}
	}
	if err := validateMode("overhead.current_cycle.mode", c.Overhead.CurrentCycle.Mode); err != nil {
		return err
	}
	if err := validateMode("overhead.planning_cycle.mode", c.Overhead.PlanningCycle.Mode); err != nil {
		return err
	}
	for _, set := range []struct {
		field string
		set   TargetSetSection
	}{
		{"overhead.current_cycle", c.Overhead.CurrentCycle},
		{"overhead.planning_cycle", c.Overhead.PlanningCycle},
	} {
		for i, t := range set.set.Targets {
			if t.Key == "" {
				return &worklog.ValidationError{
					Field:   fmt.Sprintf("%s.targets[%d].key", set.field, i),
					Message: "required",
				}
			}
			if t.WeightHours < 0 {
				return &worklog.ValidationError{
					Field:   fmt.Sprintf("%s.targets[%d].weight_hours", set.field, i),
					Message: "must not be negative",
				}
			}
		}
	}
	for _, list := range []struct {
		field string
		dates []string
	}{
		{"schedule.leave", c.Schedule.Leave},
		{"schedule.ad_hoc_holidays", c.Schedule.AdHocHolidays},
		{"schedule.compensatory_working", c.Schedule.CompensatoryWorking},
	} {
		for _, raw := range list.dates {
			if _, err := schedule.ParseDate(raw); err != nil {
				return &worklog.ValidationError{Field: list.field, Message: fmt.Sprintf("bad date %q", raw)}
			}
		}
	}
	return nil
}

func validateMode(field, mode string) error {
	switch worklog.DistributionMode(mode) {
	case "", worklog.ModeSingle, worklog.ModeEqual, worklog.ModeWeighted:
		return nil
	}
	return &worklog.ValidationError{Field: field, Message: fmt.Sprintf("unknown mode %q", mode)}
}

// =============================================================================
// RUNTIME CONVERSIONS
// =============================================================================

// DailyTarget returns the daily working target as a whole-second duration.
func (c Config) DailyTarget() time.Duration {
	return worklog.HoursToDuration(decimal.NewFromFloat(c.DailyTargetHours))
}

func (c Config) BuildLocale() schedule.Locale {
	return schedule.Locale{Country: c.Locale.Country, Region: c.Locale.Region}
}

// BuildOverrides converts the schedule section's date lists into override
// sets. Load has already validated the dates.
func (c Config) BuildOverrides() (schedule.Overrides, error) {
	leave, err := parseDateSet(c.Schedule.Leave)
	if err != nil {
		return schedule.Overrides{}, err
	}
	holidays, err := parseDateSet(c.Schedule.AdHocHolidays)
	if err != nil {
		return schedule.Overrides{}, err
	}
	working, err := parseDateSet(c.Schedule.CompensatoryWorking)
	if err != nil {
		return schedule.Overrides{}, err
	}
	return schedule.Overrides{
		Leave:               leave,
		AdHocHolidays:       holidays,
		CompensatoryWorking: working,
	}, nil
}

// SetOverrides replaces the schedule section with the given override sets,
// sorted for a stable file diff.
func (c *Config) SetOverrides(o schedule.Overrides) {
	c.Schedule = ScheduleSection{
		Leave:               formatDateSet(o.Leave),
		AdHocHolidays:       formatDateSet(o.AdHocHolidays),
		CompensatoryWorking: formatDateSet(o.CompensatoryWorking),
	}
}

// BuildOverhead converts the overhead section into the runtime policy
// configuration.
func (c Config) BuildOverhead() overhead.Config {
	return overhead.Config{
		ProjectKey:         c.Overhead.ProjectKey,
		Baseline:           worklog.HoursToDuration(decimal.NewFromFloat(c.Overhead.BaselineHours)),
		CurrentCycle:       buildTargetSet(c.Overhead.CurrentCycle),
		PlanningCycle:      buildTargetSet(c.Overhead.PlanningCycle),
		LeaveTarget:        c.Overhead.LeaveTarget,
		FallbackTarget:     c.Overhead.FallbackTarget,
		CycleID:            c.Overhead.CycleID,
		PlanningWindowDays: c.Overhead.PlanningWindowDays,
	}
}

func buildTargetSet(s TargetSetSection) overhead.TargetSet {
	mode := worklog.DistributionMode(s.Mode)
	if mode == "" {
		mode = worklog.ModeEqual
	}
	set := overhead.TargetSet{Mode: mode}
	for _, t := range s.Targets {
		set.Targets = append(set.Targets, overhead.NewTarget(t.Key, t.WeightHours))
	}
	return set
}

func parseDateSet(raw []string) (map[schedule.Date]bool, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[schedule.Date]bool, len(raw))
	for _, s := range raw {
		d, err := schedule.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("schedule override: %w", err)
		}
		out[d] = true
	}
	return out, nil
}

func formatDateSet(set map[schedule.Date]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d.String())
	}
	sort.Strings(out)
	return out
}
