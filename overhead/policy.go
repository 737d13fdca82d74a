/*
policy.go - The overhead allocation rule table

PURPOSE:
  Maps special-case days to the target set that absorbs their budget:

    Case 0 (baseline)  - daily overhead floor, topped up before anything else
    Case 1 (no items)  - no qualifying work items: budget goes to the
                         current-cycle set
    Case 2 (leave)     - leave days: the full daily target goes to the leave
                         target
    Case 3 (planning)  - the working days right after a cycle ends: budget
                         goes to the planning-cycle set, falling back to the
                         current-cycle set with a warning when unset

  Each case carries its own distribution mode. The reconciler and backfill
  engine consult the policy; the policy itself never talks to a service.

SEE ALSO:
  - cycle.go: cycle parsing and planning-window membership
  - staleness.go: daily-cached configuration drift check
  - timesheet: the consumers
*/
package overhead

import (
	"time"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// Case names one row of the rule table.
type Case int

const (
	CaseBaseline Case = iota
	CaseNoItems
	CaseLeave
	CasePlanning
)

func (c Case) String() string {
	switch c {
	case CaseBaseline:
		return "baseline"
	case CaseNoItems:
		return "no-items"
	case CaseLeave:
		return "leave"
	case CasePlanning:
		return "planning"
	default:
		return "unknown"
	}
}

// Policy is the immutable rule table built from explicit configuration.
type Policy struct {
	cfg Config
}

func NewPolicy(cfg Config) *Policy { return &Policy{cfg: cfg} }

func (p *Policy) Config() Config        { return p.cfg }
func (p *Policy) Describe() Description { return p.cfg.Describe() }

// Resolve returns the target set for a case. warning is non-empty when a
// documented fallback applied; ok is false when the case has no usable
// targets (the caller surfaces the degenerate outcome).
func (p *Policy) Resolve(c Case) (set TargetSet, warning string, ok bool) {
	switch c {
	case CaseBaseline, CaseNoItems:
		return p.cfg.CurrentCycle, "", !p.cfg.CurrentCycle.Empty()
	case CaseLeave:
		if p.cfg.LeaveTarget == "" {
			return TargetSet{}, "", false
		}
		return TargetSet{
			Targets: []worklog.Target{{Key: p.cfg.LeaveTarget}},
			Mode:    worklog.ModeSingle,
		}, "", true
	case CasePlanning:
		if !p.cfg.PlanningCycle.Empty() {
			return p.cfg.PlanningCycle, "", true
		}
		if !p.cfg.CurrentCycle.Empty() {
			return p.cfg.CurrentCycle, "planning targets unset, using current-cycle targets", true
		}
		return TargetSet{}, "", false
	default:
		return TargetSet{}, "", false
	}
}

// FallbackSet is the backfill engine's tier-3 catch-all as a single-target
// set.
func (p *Policy) FallbackSet() (TargetSet, bool) {
	if p.cfg.FallbackTarget == "" {
		return TargetSet{}, false
	}
	return TargetSet{
		Targets: []worklog.Target{{Key: p.cfg.FallbackTarget}},
		Mode:    worklog.ModeSingle,
	}, true
}

// BaselineTopUp returns the case-0 amount still owed for the day: the
// configured baseline minus the overhead already logged. Zero when the
// baseline is disabled or already met, so re-runs never double-top-up.
func (p *Policy) BaselineTopUp(existingOverhead time.Duration) time.Duration {
	if p.cfg.Baseline <= 0 || existingOverhead >= p.cfg.Baseline {
		return 0
	}
	return p.cfg.Baseline - existingOverhead
}

// ActiveCycle parses the configured cycle identifier.
func (p *Policy) ActiveCycle() (Cycle, bool) { return ParseCycle(p.cfg.CycleID) }

// InPlanningWindow applies case 3's membership test: strictly after the
// configured cycle's end, within the window of working days.
func (p *Policy) InPlanningWindow(d schedule.Date, isWorking func(schedule.Date) bool) bool {
	c, ok := p.ActiveCycle()
	if !ok {
		return false
	}
	return InPlanningWindow(d, c, p.cfg.WindowDays(), isWorking)
}

// IsProtectedKey reports whether entries on this item key are protected
// from delete-then-recreate. Overhead-project keys are protected by prefix;
// the leave and fallback targets are protected regardless, since routine
// passes must never remove what they absorbed.
func (p *Policy) IsProtectedKey(key string) bool {
	if p.cfg.IsOverheadKey(key) {
		return true
	}
	return key != "" && (key == p.cfg.LeaveTarget || key == p.cfg.FallbackTarget)
}

// TagOrigins stamps each entry's origin from its item key. Entries arrive
// from the ledger untagged; the origin tag is derived state owned by this
// policy.
func (p *Policy) TagOrigins(entries []worklog.LedgerEntry) []worklog.LedgerEntry {
	out := append([]worklog.LedgerEntry(nil), entries...)
	for i := range out {
		if p.IsProtectedKey(out[i].ItemKey) {
			out[i].Origin = worklog.OriginOverhead
		} else {
			out[i].Origin = worklog.OriginRegular
		}
	}
	return out
}
