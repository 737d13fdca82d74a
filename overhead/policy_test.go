package overhead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

func testConfig() Config {
	return Config{
		ProjectKey: "OVH",
		Baseline:   time.Hour,
		CurrentCycle: TargetSet{
			Targets: []worklog.Target{NewTarget("OVH-10", 0), NewTarget("OVH-11", 0)},
			Mode:    worklog.ModeEqual,
		},
		PlanningCycle: TargetSet{
			Targets: []worklog.Target{NewTarget("OVH-20", 0)},
			Mode:    worklog.ModeSingle,
		},
		LeaveTarget:    "OVH-30",
		FallbackTarget: "OVH-40",
		CycleID:        "PI.26.3.SEP.15",
	}
}

func TestResolveCases(t *testing.T) {
	p := NewPolicy(testConfig())

	set, warning, ok := p.Resolve(CaseNoItems)
	require.True(t, ok)
	assert.Empty(t, warning)
	assert.Equal(t, []string{"OVH-10", "OVH-11"}, set.Keys())

	set, _, ok = p.Resolve(CaseLeave)
	require.True(t, ok)
	assert.Equal(t, []string{"OVH-30"}, set.Keys())
	assert.Equal(t, worklog.ModeSingle, set.Mode)

	set, warning, ok = p.Resolve(CasePlanning)
	require.True(t, ok)
	assert.Empty(t, warning)
	assert.Equal(t, []string{"OVH-20"}, set.Keys())
}

func TestResolvePlanningFallsBackToCurrent(t *testing.T) {
	cfg := testConfig()
	cfg.PlanningCycle = TargetSet{}
	p := NewPolicy(cfg)

	set, warning, ok := p.Resolve(CasePlanning)

	require.True(t, ok)
	assert.NotEmpty(t, warning)
	assert.Equal(t, []string{"OVH-10", "OVH-11"}, set.Keys())
}

func TestResolveUnconfiguredCases(t *testing.T) {
	p := NewPolicy(Config{})

	for _, c := range []Case{CaseBaseline, CaseNoItems, CaseLeave, CasePlanning} {
		_, _, ok := p.Resolve(c)
		assert.False(t, ok, "case %s", c)
	}
	_, ok := p.FallbackSet()
	assert.False(t, ok)
}

func TestBaselineTopUp(t *testing.T) {
	p := NewPolicy(testConfig()) // 1h baseline

	assert.Equal(t, time.Hour, p.BaselineTopUp(0))
	assert.Equal(t, 30*time.Minute, p.BaselineTopUp(30*time.Minute))
	assert.Equal(t, time.Duration(0), p.BaselineTopUp(time.Hour), "met baseline never tops up again")
	assert.Equal(t, time.Duration(0), p.BaselineTopUp(2*time.Hour))

	disabled := NewPolicy(Config{})
	assert.Equal(t, time.Duration(0), disabled.BaselineTopUp(0))
}

func TestInPlanningWindowFromConfig(t *testing.T) {
	p := NewPolicy(testConfig()) // cycle ends 2026-09-15

	assert.True(t, p.InPlanningWindow(schedule.NewDate(2026, time.September, 17), weekdaysOnly))
	assert.False(t, p.InPlanningWindow(schedule.NewDate(2026, time.September, 10), weekdaysOnly))

	noCycle := NewPolicy(Config{})
	assert.False(t, noCycle.InPlanningWindow(schedule.NewDate(2026, time.September, 17), weekdaysOnly))
}

func TestIsProtectedKey(t *testing.T) {
	cfg := testConfig()
	cfg.LeaveTarget = "HR-7" // leave target outside the overhead project
	p := NewPolicy(cfg)

	assert.True(t, p.IsProtectedKey("OVH-10"))
	assert.True(t, p.IsProtectedKey("OVH-999"))
	assert.True(t, p.IsProtectedKey("HR-7"), "leave target protected regardless of prefix")
	assert.True(t, p.IsProtectedKey("OVH-40"))
	assert.False(t, p.IsProtectedKey("DEV-1"))
	assert.False(t, p.IsProtectedKey("OVHX-1"), "prefix match requires the dash")
}

func TestTagOrigins(t *testing.T) {
	p := NewPolicy(testConfig())
	d := schedule.NewDate(2026, time.August, 24)
	entries := []worklog.LedgerEntry{
		{ID: "1", ItemKey: "OVH-10", Date: d, Duration: time.Hour},
		{ID: "2", ItemKey: "DEV-1", Date: d, Duration: 2 * time.Hour},
	}

	tagged := p.TagOrigins(entries)

	assert.Equal(t, worklog.OriginOverhead, tagged[0].Origin)
	assert.Equal(t, worklog.OriginRegular, tagged[1].Origin)
	// The input slice is left untouched.
	assert.Empty(t, entries[0].Origin)
}

func TestDescribe(t *testing.T) {
	cfg := testConfig()
	cfg.CurrentCycle.Targets[0] = NewTarget("OVH-10", 1.5)
	desc := NewPolicy(cfg).Describe()

	assert.Equal(t, "OVH", desc.ProjectKey)
	assert.Equal(t, "1", desc.BaselineHours)
	require.Len(t, desc.CurrentCycle, 2)
	assert.Equal(t, "1.5", desc.CurrentCycle[0].WeightHours)
	assert.Empty(t, desc.CurrentCycle[1].WeightHours)
	assert.Equal(t, "PI.26.3.SEP.15", desc.CycleID)
	assert.Equal(t, 5, desc.PlanningWindowDays)
}
