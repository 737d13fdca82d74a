// Package overhead decides where non-attributable time goes: the rule table
// mapping special-case days to overhead target sets, work-cycle parsing and
// the planning-window computation.
package overhead

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// TARGET SETS
// =============================================================================

// TargetSet is a group of overhead targets with its distribution mode.
type TargetSet struct {
	Targets []worklog.Target
	Mode    worklog.DistributionMode
}

func (s TargetSet) Empty() bool { return len(s.Targets) == 0 }

// Keys lists the set's item keys in configuration order.
func (s TargetSet) Keys() []string {
	out := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		out[i] = t.Key
	}
	return out
}

// Config is the full overhead policy configuration, passed in explicitly.
type Config struct {
	// ProjectKey identifies overhead work items by key prefix
	// ("<ProjectKey>-"). It is the protection signal source: entries on
	// these items are tagged overhead and never deleted.
	ProjectKey string

	// Baseline is the case-0 daily overhead floor. Zero disables it.
	Baseline time.Duration

	// CurrentCycle receives case-1 budget (no qualifying items) and
	// baseline top-ups.
	CurrentCycle TargetSet

	// PlanningCycle receives case-3 budget during the planning window.
	PlanningCycle TargetSet

	// LeaveTarget receives the full daily target on leave days (case 2).
	LeaveTarget string

	// FallbackTarget is the backfill engine's tier-3 catch-all.
	FallbackTarget string

	// CycleID is the work-cycle identifier the targets were configured
	// for, compared by the staleness check.
	CycleID string

	// PlanningWindowDays is the window length in working days after the
	// cycle end. Zero means the default of 5.
	PlanningWindowDays int
}

// Description is the redacted, report-facing view of the configuration.
type Description struct {
	ProjectKey         string            `json:"project_key"`
	BaselineHours      string            `json:"baseline_hours"`
	CurrentCycle       []DescribedTarget `json:"current_cycle_targets"`
	CurrentCycleMode   string            `json:"current_cycle_mode"`
	PlanningCycle      []DescribedTarget `json:"planning_cycle_targets"`
	PlanningCycleMode  string            `json:"planning_cycle_mode"`
	LeaveTarget        string            `json:"leave_target"`
	FallbackTarget     string            `json:"fallback_target"`
	CycleID            string            `json:"cycle_id"`
	PlanningWindowDays int               `json:"planning_window_days"`
}

type DescribedTarget struct {
	Key         string `json:"key"`
	WeightHours string `json:"weight_hours,omitempty"`
}

// Describe renders the configuration as its report-facing view.
func (c Config) Describe() Description {
	return Description{
		ProjectKey:         c.ProjectKey,
		BaselineHours:      worklog.Hours(c.Baseline).Round(2).String(),
		CurrentCycle:       describeTargets(c.CurrentCycle),
		CurrentCycleMode:   string(c.CurrentCycle.Mode),
		PlanningCycle:      describeTargets(c.PlanningCycle),
		PlanningCycleMode:  string(c.PlanningCycle.Mode),
		LeaveTarget:        c.LeaveTarget,
		FallbackTarget:     c.FallbackTarget,
		CycleID:            c.CycleID,
		PlanningWindowDays: c.WindowDays(),
	}
}

func describeTargets(set TargetSet) []DescribedTarget {
	out := make([]DescribedTarget, 0, len(set.Targets))
	for _, t := range set.Targets {
		d := DescribedTarget{Key: t.Key}
		if t.Weight.IsPositive() {
			d.WeightHours = t.Weight.String()
		}
		out = append(out, d)
	}
	return out
}

// WindowDays returns the effective planning window length.
func (c Config) WindowDays() int {
	if c.PlanningWindowDays > 0 {
		return c.PlanningWindowDays
	}
	return defaultPlanningWindowDays
}

// IsOverheadKey reports whether an item key belongs to the overhead project.
func (c Config) IsOverheadKey(key string) bool {
	return c.ProjectKey != "" && strings.HasPrefix(key, c.ProjectKey+"-")
}

// NewTarget builds a worklog.Target from a key and an hour weight.
func NewTarget(key string, weightHours float64) worklog.Target {
	return worklog.Target{Key: key, Weight: decimal.NewFromFloat(weightHours)}
}
