/*
Package sqlite provides the SQLite-backed implementation of the local state
interfaces.

PURPOSE:
  Everything the engine keeps between runs lives in one small database:
  the last known good holiday feed, cross-run key/value state (the overhead
  staleness stamp), and the run journal the control API reads.

INTERFACES IMPLEMENTED:
  schedule.FeedCache:   holiday feed payload with its version
  overhead.StampStore:  small key/value state
  timesheet.RunJournal: journaled engine runs

KEY TABLES:
  holiday_feed: single-row cache of the organization holiday dataset
  state:        key/value rows, last-writer-wins
  runs:         one row per engine run, day summaries as JSON

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; the scheduler and the API share one
  Store in process.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("~/.worklog/state.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  source := schedule.NewSource(feedURL, fetcher, store)
  staleness := overhead.NewStalenessChecker(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/holiday.go: FeedCache definition and the fetch protocol
  - overhead/staleness.go: StampStore definition
  - timesheet/run.go: RunJournal definition
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

// Store implements all local state interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Holiday feed cache (single row)
	CREATE TABLE IF NOT EXISTS holiday_feed (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version TEXT NOT NULL,
		payload BLOB NOT NULL,
		fetched_at TEXT NOT NULL
	);

	-- Cross-run key/value state
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Run journal
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_by TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		days_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at
		ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status
		ON runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HOLIDAY FEED CACHE (schedule.FeedCache interface)
// =============================================================================

// LoadFeed returns the cached feed payload, or ok=false when none is stored.
func (s *Store) LoadFeed() (string, []byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version string
	var payload []byte
	err := s.db.QueryRow("SELECT version, payload FROM holiday_feed WHERE id = 1").
		Scan(&version, &payload)
	if err == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to load holiday feed: %w", err)
	}
	return version, payload, true, nil
}

// SaveFeed overwrites the cached feed payload.
func (s *Store) SaveFeed(version string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO holiday_feed (id, version, payload, fetched_at) VALUES (1, ?, ?, ?)",
		version, raw, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday feed: %w", err)
	}
	return nil
}

// =============================================================================
// KEY/VALUE STATE (overhead.StampStore interface)
// =============================================================================

// LoadStamp returns the stored value for a key, empty when absent.
func (s *Store) LoadStamp(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load state %q: %w", key, err)
	}
	return value, nil
}

// SaveStamp stores a value under a key, replacing any previous value.
func (s *Store) SaveStamp(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO state (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save state %q: %w", key, err)
	}
	return nil
}

// =============================================================================
// RUN JOURNAL (timesheet.RunJournal interface)
// =============================================================================

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(ctx context.Context, run timesheet.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	daysJSON, err := encodeDays(run.Days)
	if err != nil {
		return fmt.Errorf("failed to encode run days: %w", err)
	}

	var finished sql.NullString
	if !run.FinishedAt.IsZero() {
		finished = sql.NullString{String: run.FinishedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, kind, started_by, from_date, to_date, status, error, days_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Kind),
		string(run.Trigger),
		run.From.String(),
		run.To.String(),
		string(run.Status),
		nullString(run.Error),
		string(daysJSON),
		run.StartedAt.UTC().Format(time.RFC3339),
		finished,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (timesheet.SyncRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, started_by, from_date, to_date, status, error, days_json, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return timesheet.SyncRun{}, false, nil
	}
	if err != nil {
		return timesheet.SyncRun{}, false, err
	}
	return run, true, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]timesheet.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, started_by, from_date, to_date, status, error, days_json, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []timesheet.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (timesheet.SyncRun, error) {
	var (
		run        timesheet.SyncRun
		kind       string
		trigger    string
		fromDate   string
		toDate     string
		status     string
		errText    sql.NullString
		daysJSON   string
		startedAt  string
		finishedAt sql.NullString
	)

	err := row.Scan(&run.ID, &kind, &trigger, &fromDate, &toDate, &status,
		&errText, &daysJSON, &startedAt, &finishedAt)
	if err != nil {
		return timesheet.SyncRun{}, err
	}

	run.Kind = timesheet.RunKind(kind)
	run.Trigger = timesheet.RunTrigger(trigger)
	run.Status = timesheet.RunStatus(status)
	run.Error = errText.String

	if run.From, err = schedule.ParseDate(fromDate); err != nil {
		return timesheet.SyncRun{}, fmt.Errorf("failed to parse run from_date: %w", err)
	}
	if run.To, err = schedule.ParseDate(toDate); err != nil {
		return timesheet.SyncRun{}, fmt.Errorf("failed to parse run to_date: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return timesheet.SyncRun{}, fmt.Errorf("failed to parse run started_at: %w", err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(time.RFC3339, finishedAt.String); err != nil {
			return timesheet.SyncRun{}, fmt.Errorf("failed to parse run finished_at: %w", err)
		}
	}
	if run.Days, err = decodeDays([]byte(daysJSON)); err != nil {
		return timesheet.SyncRun{}, err
	}
	return run, nil
}

// =============================================================================
// DAY SUMMARY SERIALIZATION
// =============================================================================

// runDay is the stored JSON shape of one day summary. Durations persist as
// whole seconds, dates as "2006-01-02" strings.
type runDay struct {
	Date            string     `json:"date"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	ExistingSeconds int64      `json:"existing_seconds"`
	AddedSeconds    int64      `json:"added_seconds"`
	Deleted         int        `json:"deleted,omitempty"`
	Created         []runEntry `json:"created,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
}

type runEntry struct {
	ID          string `json:"id,omitempty"`
	Key         string `json:"key"`
	Seconds     int64  `json:"seconds"`
	Description string `json:"description,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

func encodeDays(days []timesheet.DaySummary) ([]byte, error) {
	out := make([]runDay, 0, len(days))
	for _, day := range days {
		rd := runDay{
			Date:            day.Date.String(),
			Status:          string(day.Status),
			Reason:          day.Reason,
			ExistingSeconds: int64(day.Existing / time.Second),
			AddedSeconds:    int64(day.Added / time.Second),
			Deleted:         day.DeletedCount,
			Warnings:        day.Warnings,
		}
		for _, entry := range day.Created {
			rd.Created = append(rd.Created, runEntry{
				ID:          entry.ID,
				Key:         entry.ItemKey,
				Seconds:     int64(entry.Duration / time.Second),
				Description: entry.Description,
				Origin:      string(entry.Origin),
			})
		}
		out = append(out, rd)
	}
	return json.Marshal(out)
}

func decodeDays(raw []byte) ([]timesheet.DaySummary, error) {
	var stored []runDay
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode run days: %w", err)
	}

	out := make([]timesheet.DaySummary, 0, len(stored))
	for _, rd := range stored {
		date, err := schedule.ParseDate(rd.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run day date: %w", err)
		}
		day := timesheet.DaySummary{
			Date:         date,
			Status:       timesheet.DayStatus(rd.Status),
			Reason:       rd.Reason,
			Existing:     time.Duration(rd.ExistingSeconds) * time.Second,
			Added:        time.Duration(rd.AddedSeconds) * time.Second,
			DeletedCount: rd.Deleted,
			Warnings:     rd.Warnings,
		}
		for _, entry := range rd.Created {
			day.Created = append(day.Created, worklog.LedgerEntry{
				ID:          entry.ID,
				ItemKey:     entry.Key,
				Date:        date,
				Duration:    time.Duration(entry.Seconds) * time.Second,
				Description: entry.Description,
				Origin:      worklog.Origin(entry.Origin),
			})
		}
		out = append(out, day)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var (
	_ schedule.FeedCache   = (*Store)(nil)
	_ overhead.StampStore  = (*Store)(nil)
	_ timesheet.RunJournal = (*Store)(nil)
)
