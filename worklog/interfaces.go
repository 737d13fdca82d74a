package worklog

import (
	"context"
	"time"

	"github.com/warp/worklog-engine/schedule"
)

// =============================================================================
// CONSUMED CAPABILITIES
// =============================================================================
// The core depends on these interfaces only; jira and tempo provide the
// concrete clients, memory.go provides in-process fakes.

// WorkItemDirectory reads assignable tasks from the tracking service.
type WorkItemDirectory interface {
	// ListActive returns the person's items currently in a qualifying status.
	ListActive(ctx context.Context, personID string) ([]WorkItem, error)

	// ListActiveAsOf returns items that were in a qualifying status on a
	// historical date (point-in-time query).
	ListActiveAsOf(ctx context.Context, personID string, date schedule.Date) ([]WorkItem, error)

	// GetDetail fetches the long form of one item for description
	// generation.
	GetDetail(ctx context.Context, itemKey string) (ItemDetail, error)
}

// TimeLedger reads and mutates dated duration entries.
type TimeLedger interface {
	ListEntries(ctx context.Context, personID string, date schedule.Date) ([]LedgerEntry, error)

	// CreateEntry writes one entry and returns it with the remote ID set.
	CreateEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)

	DeleteEntry(ctx context.Context, id string) error

	// SubmitPeriod submits the period identified by key ("2006-01" form)
	// for approval.
	SubmitPeriod(ctx context.Context, periodKey string) error
}

// OverheadLister is an optional WorkItemDirectory capability: live items
// under the overhead project, consumed by the staleness check. Directories
// that cannot answer it simply don't implement it.
type OverheadLister interface {
	ListOverhead(ctx context.Context) ([]WorkItem, error)
}

// Event is one scheduled calendar-of-record item.
type Event struct {
	Title    string
	Duration time.Duration
}

// CalendarOfRecord is an optional collaborator supplying scheduled events
// for historical backfill. A nil value disables the tier.
type CalendarOfRecord interface {
	ListEvents(ctx context.Context, personID string, date schedule.Date) ([]Event, error)
}

// NotificationSink receives fire-and-forget user-facing alerts. Delivery is
// best effort and never fails the caller.
type NotificationSink interface {
	Notify(title, body string)
}
