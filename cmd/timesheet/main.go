/*
main.go - CLI entry point

PURPOSE:
  Command-line shell over the reconciliation engine. Subcommands map onto
  the engine's exposed surface; serve additionally hosts the localhost
  control API with the background scheduler.

SUBCOMMANDS:
  sync      Reconcile one date's ledger entries (default today)
  verify    Check a date range and backfill gaps (default week so far)
  submit    Submit a month's timesheet for approval
  calendar  Render a classified month calendar
  overhead  Show the overhead allocation policy
  schedule  Manage leave / holiday / working overrides
  serve     Run the localhost control API with the daily timer

CONFIGURATION:
  All commands read one config file (JSON or YAML), selected with the
  persistent --config flag. Credentials for the tracker and ledger live
  there; see config.Config for the full shape.

STATE:
  Long-lived state (holiday feed cache, staleness stamp, run journal) is
  kept in a SQLite file next to the config, store_path in the config file
  or timesheet.db by default.

EXAMPLES:
  # Reconcile today
  timesheet sync --config ~/.timesheet.json

  # Backfill the current week
  timesheet verify

  # Mark a leave day and persist it to the config file
  timesheet schedule add leave 2026-09-14

  # Host the control API on the configured listen address
  timesheet serve

SEE ALSO:
  - config/config.go: config file format
  - api/server.go: routes served by the serve command
  - timesheet/engine.go: the engine behind every subcommand
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/worklog-engine/config"
	"github.com/warp/worklog-engine/jira"
	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/store/sqlite"
	"github.com/warp/worklog-engine/tempo"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

const defaultStorePath = "timesheet.db"

var (
	// Used for flags.
	configPath string

	rootCmd = &cobra.Command{
		Use:           "timesheet",
		Short:         "Reconcile daily work time against the tracker and the time ledger.",
		Long:          `Timesheet keeps a person's time ledger aligned with their calendar and active work items: it classifies each date, fills working days from active items and overhead targets, backfills past gaps, and submits finished months.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "timesheet.json", "Path to the config file (JSON or YAML).")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(overheadCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	Execute()
}

// =============================================================================
// RUNTIME ASSEMBLY
// =============================================================================

// app is the assembled runtime for commands that talk to the services.
type app struct {
	cfg    config.Config
	store  *sqlite.Store
	engine *timesheet.Engine
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func openStore(cfg config.Config) (*sqlite.Store, error) {
	path := cfg.StorePath
	if path == "" {
		path = defaultStorePath
	}
	return sqlite.New(path)
}

// buildSchedule assembles the calendar resolver and runs one feed refresh
// so the first classification already sees current holiday data.
func buildSchedule(ctx context.Context, cfg config.Config, cache schedule.FeedCache) (*schedule.Schedule, error) {
	overrides, err := cfg.BuildOverrides()
	if err != nil {
		return nil, err
	}
	source := schedule.NewSource(cfg.HolidayFeedURL, schedule.NewHTTPFetcher(0), cache)
	sched := schedule.NewSchedule(cfg.BuildLocale(), overrides, source)
	sched.Refresh(ctx)
	return sched, nil
}

// buildApp loads the config and assembles the full engine: tracker and
// ledger clients, schedule, overhead policy, store-backed staleness check
// and the notification sink.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	tracker, err := jira.NewClient(jira.Config{
		BaseURL:         cfg.Tracker.BaseURL,
		Email:           cfg.Tracker.Email,
		APIToken:        cfg.Tracker.APIToken,
		ActiveStatuses:  cfg.Tracker.ActiveStatuses,
		OverheadProject: cfg.Tracker.OverheadProject,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("tracker: %w", err)
	}

	// The ledger attributes entries to a tracker account. Resolve it from
	// the tracker identity unless the config pins one.
	accountID := cfg.Ledger.AccountID
	if accountID == "" {
		accountID, err = tracker.AccountID(ctx)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("resolve account id: %w", err)
		}
	}

	ledger, err := tempo.NewClient(tempo.Config{
		BaseURL:   cfg.Ledger.BaseURL,
		APIToken:  cfg.Ledger.APIToken,
		AccountID: accountID,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}

	sched, err := buildSchedule(ctx, cfg, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	var sink worklog.NotificationSink = notify.LogSink{}
	if len(cfg.NotifierCommand) > 0 {
		sink = notify.CommandSink{Argv: cfg.NotifierCommand}
	}

	engine, err := timesheet.NewEngine(timesheet.Config{
		PersonID:    accountID,
		DailyTarget: cfg.DailyTarget(),
		Schedule:    sched,
		Policy:      overhead.NewPolicy(cfg.BuildOverhead()),
		Directory:   tracker,
		Ledger:      ledger,
		Notifier:    sink,
		Staleness:   overhead.NewStalenessChecker(st),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: st, engine: engine}, nil
}

// =============================================================================
// SHARED FLAG HELPERS
// =============================================================================

func parseDateFlag(value string, fallback schedule.Date) (schedule.Date, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := schedule.ParseDate(value)
	if err != nil {
		return schedule.Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", value)
	}
	return d, nil
}

func validateMonthFlag(month int) (time.Month, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("invalid month %d (1-12)", month)
	}
	return time.Month(month), nil
}
