package timesheet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/worklog-engine/schedule"
)

// =============================================================================
// RUN JOURNAL
// =============================================================================

// RunKind names the engine operation a journaled run performed.
type RunKind string

const (
	RunReconcile RunKind = "reconcile"
	RunVerify    RunKind = "verify"
	RunSubmit    RunKind = "submit"
)

// RunTrigger names what started a run.
type RunTrigger string

const (
	TriggerManual RunTrigger = "manual"
	TriggerTimer  RunTrigger = "timer"
	TriggerAPI    RunTrigger = "api"
)

// RunStatus is a run's lifecycle state.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SyncRun is one journaled engine run. Saved once when the run starts and
// again when it finishes; FinishedAt stays zero in between.
type SyncRun struct {
	ID         string
	Kind       RunKind
	Trigger    RunTrigger
	From, To   schedule.Date
	Status     RunStatus
	Error      string
	Days       []DaySummary
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunJournal persists run records across processes.
// Implemented by store/sqlite; MemoryJournal serves tests.
type RunJournal interface {
	// SaveRun inserts or replaces the run by id.
	SaveRun(ctx context.Context, run SyncRun) error
	GetRun(ctx context.Context, id string) (SyncRun, bool, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]SyncRun, error)
}

// MemoryJournal is an in-process RunJournal.
type MemoryJournal struct {
	mu   sync.RWMutex
	runs map[string]SyncRun
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{runs: make(map[string]SyncRun)}
}

func (m *MemoryJournal) SaveRun(ctx context.Context, run SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryJournal) GetRun(ctx context.Context, id string) (SyncRun, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	return run, ok, nil
}

func (m *MemoryJournal) ListRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ RunJournal = (*MemoryJournal)(nil)
