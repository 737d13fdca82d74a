package overhead

import (
	"fmt"
	"log"
	"sync"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/worklog"
)

// =============================================================================
// STALENESS CHECK
// =============================================================================

// stampKey is where the last-checked date lives in the state store.
const stampKey = "overhead_cycle_checked"

// StampStore persists small key/value state across runs.
// Implemented by store/sqlite; MemoryStamps serves tests.
type StampStore interface {
	LoadStamp(key string) (string, error)
	SaveStamp(key, value string) error
}

// StalenessChecker flags overhead configuration drift: the stored cycle
// identifier no longer matching any cycle on the live overhead items. The
// check runs at most once per day; the day stamp persists across processes.
type StalenessChecker struct {
	store StampStore
}

func NewStalenessChecker(store StampStore) *StalenessChecker {
	return &StalenessChecker{store: store}
}

// ShouldCheck reports whether today's check is still owed. Callers use it
// to skip the remote item query entirely on all but the first run of a day.
func (c *StalenessChecker) ShouldCheck(today schedule.Date) bool {
	stamp, err := c.store.LoadStamp(stampKey)
	if err != nil {
		log.Printf("[Overhead] Warning: staleness stamp unreadable: %v", err)
		return true
	}
	return stamp != today.String()
}

// Check compares the configured cycle against the live items' cycles.
// Returns a warning and true on mismatch. Skips silently when already
// checked today, when no cycle is configured, or when the live list carries
// no parseable cycle.
func (c *StalenessChecker) Check(today schedule.Date, configuredCycleID string, live []worklog.WorkItem) (string, bool) {
	if configuredCycleID == "" {
		return "", false
	}

	stamp, err := c.store.LoadStamp(stampKey)
	if err != nil {
		log.Printf("[Overhead] Warning: staleness stamp unreadable: %v", err)
	} else if stamp == today.String() {
		return "", false
	}
	if err := c.store.SaveStamp(stampKey, today.String()); err != nil {
		log.Printf("[Overhead] Warning: staleness stamp write failed: %v", err)
	}

	var liveCycles []string
	for _, item := range live {
		cycle, ok := CycleOf(item)
		if !ok {
			continue
		}
		if cycle.ID == configuredCycleID {
			return "", false
		}
		liveCycles = append(liveCycles, cycle.ID)
	}
	if len(liveCycles) == 0 {
		return "", false
	}
	return fmt.Sprintf("overhead targets are configured for cycle %s but live items reference %v",
		configuredCycleID, liveCycles), true
}

// MemoryStamps is an in-process StampStore for tests.
type MemoryStamps struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStamps() *MemoryStamps {
	return &MemoryStamps{values: make(map[string]string)}
}

func (m *MemoryStamps) LoadStamp(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemoryStamps) SaveStamp(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

var _ StampStore = (*MemoryStamps)(nil)
