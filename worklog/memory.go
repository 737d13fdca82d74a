package worklog

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/worklog-engine/schedule"
)

// =============================================================================
// MEMORY IMPLEMENTATIONS
// =============================================================================
// In-process fakes of the capability interfaces, for tests and demo
// scenarios. Single-person stores: the personID argument is accepted and
// ignored.

// MemoryLedger implements TimeLedger in memory.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []LedgerEntry
	nextID  int

	Submitted []string // period keys submitted, in order

	// Optional failure injection for error-path tests.
	ListErr   error
	CreateErr error
	DeleteErr error
}

func NewMemoryLedger() *MemoryLedger { return &MemoryLedger{} }

func (m *MemoryLedger) ListEntries(ctx context.Context, personID string, date schedule.Date) ([]LedgerEntry, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []LedgerEntry
	for _, e := range m.entries {
		if e.Date.Equal(date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryLedger) CreateEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	if m.CreateErr != nil {
		return LedgerEntry{}, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry.ID = fmt.Sprintf("M-%d", m.nextID)
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *MemoryLedger) DeleteEntry(ctx context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", id, ErrNotFound)
}

func (m *MemoryLedger) SubmitPeriod(ctx context.Context, periodKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submitted = append(m.Submitted, periodKey)
	return nil
}

// Seed inserts an entry directly, assigning an ID, bypassing failure hooks.
func (m *MemoryLedger) Seed(entry LedgerEntry) LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	entry.ID = fmt.Sprintf("M-%d", m.nextID)
	m.entries = append(m.entries, entry)
	return entry
}

// Entries returns a copy of everything stored, in insertion order.
func (m *MemoryLedger) Entries() []LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LedgerEntry(nil), m.entries...)
}

// EntriesOn returns a copy of one date's entries, in insertion order.
func (m *MemoryLedger) EntriesOn(date schedule.Date) []LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []LedgerEntry
	for _, e := range m.entries {
		if e.Date.Equal(date) {
			out = append(out, e)
		}
	}
	return out
}

var _ TimeLedger = (*MemoryLedger)(nil)

// MemoryDirectory implements WorkItemDirectory and OverheadLister in memory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	Active   []WorkItem
	AsOf     map[schedule.Date][]WorkItem
	Details  map[string]ItemDetail
	Overhead []WorkItem

	ActiveErr   error
	AsOfErr     error
	DetailErr   error
	OverheadErr error
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		AsOf:    make(map[schedule.Date][]WorkItem),
		Details: make(map[string]ItemDetail),
	}
}

func (m *MemoryDirectory) ListActive(ctx context.Context, personID string) ([]WorkItem, error) {
	if m.ActiveErr != nil {
		return nil, m.ActiveErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WorkItem(nil), m.Active...), nil
}

func (m *MemoryDirectory) ListActiveAsOf(ctx context.Context, personID string, date schedule.Date) ([]WorkItem, error) {
	if m.AsOfErr != nil {
		return nil, m.AsOfErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WorkItem(nil), m.AsOf[date]...), nil
}

func (m *MemoryDirectory) GetDetail(ctx context.Context, itemKey string) (ItemDetail, error) {
	if m.DetailErr != nil {
		return ItemDetail{}, m.DetailErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	detail, ok := m.Details[itemKey]
	if !ok {
		return ItemDetail{}, fmt.Errorf("item %s: %w", itemKey, ErrNotFound)
	}
	return detail, nil
}

func (m *MemoryDirectory) ListOverhead(ctx context.Context) ([]WorkItem, error) {
	if m.OverheadErr != nil {
		return nil, m.OverheadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WorkItem(nil), m.Overhead...), nil
}

var (
	_ WorkItemDirectory = (*MemoryDirectory)(nil)
	_ OverheadLister    = (*MemoryDirectory)(nil)
)

// MemoryCalendar implements CalendarOfRecord in memory.
type MemoryCalendar struct {
	mu     sync.RWMutex
	Events map[schedule.Date][]Event
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{Events: make(map[schedule.Date][]Event)}
}

func (m *MemoryCalendar) ListEvents(ctx context.Context, personID string, date schedule.Date) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Event(nil), m.Events[date]...), nil
}

var _ CalendarOfRecord = (*MemoryCalendar)(nil)
