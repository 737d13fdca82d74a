package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
	"github.com/warp/worklog-engine/worklog"
)

// Flags for the run commands.
var (
	syncDate    string
	verifyFrom  string
	verifyTo    string
	submitYear  int
	submitMonth int
	submitForce bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile one date's ledger entries.",
	Long:  `Reconciles a single date: deletes stale regular entries, tops up overhead to the baseline, then fills the remaining daily target from active work items (or the planning targets inside a planning window).`,
	RunE:  runSyncCommand,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a date range and backfill gaps.",
	Long:  `Walks a date range, reports each day's logged state, and backfills underfilled past working days from point-in-time items, calendar events, and the overhead catch-all.`,
	RunE:  runVerifyCommand,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a month's timesheet for approval.",
	Long:  `Submits the month's ledger period. Outside the month's last day, or when the logged total falls short of the expected total, the submission is skipped unless --force is given.`,
	RunE:  runSubmitCommand,
}

func init() {
	syncCmd.Flags().StringVar(&syncDate, "date", "", "Date to reconcile (YYYY-MM-DD, default today).")

	verifyCmd.Flags().StringVar(&verifyFrom, "from", "", "Range start (YYYY-MM-DD, default start of this week).")
	verifyCmd.Flags().StringVar(&verifyTo, "to", "", "Range end (YYYY-MM-DD, default today).")

	submitCmd.Flags().IntVar(&submitYear, "year", 0, "Year to submit (default current).")
	submitCmd.Flags().IntVar(&submitMonth, "month", 0, "Month to submit, 1-12 (default current).")
	submitCmd.Flags().BoolVar(&submitForce, "force", false, "Submit even off the last day or with a shortfall.")
}

func runSyncCommand(cmd *cobra.Command, args []string) error {
	date, err := parseDateFlag(syncDate, schedule.Today())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, runErr := a.engine.Reconcile(ctx, date)
	recordRun(ctx, a.store, timesheet.RunReconcile, date, date, []timesheet.DaySummary{summary}, runErr)
	if runErr != nil {
		return runErr
	}

	timesheet.RenderDay(cmd.OutOrStdout(), summary)
	return nil
}

func runVerifyCommand(cmd *cobra.Command, args []string) error {
	today := schedule.Today()
	from, err := parseDateFlag(verifyFrom, today.StartOfWeek())
	if err != nil {
		return err
	}
	to, err := parseDateFlag(verifyTo, today)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("range end %s is before start %s", to, from)
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.engine.Verify(ctx, from, to)
	recordRun(ctx, a.store, timesheet.RunVerify, from, to, report.Days, runErr)
	if runErr != nil {
		return runErr
	}

	timesheet.RenderReport(cmd.OutOrStdout(), report)
	return nil
}

func runSubmitCommand(cmd *cobra.Command, args []string) error {
	today := schedule.Today()
	if submitYear == 0 {
		submitYear = today.Year()
	}
	if submitMonth == 0 {
		submitMonth = int(today.Month())
	}
	month, err := validateMonthFlag(submitMonth)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	first := schedule.NewDate(submitYear, month, 1)
	sub, runErr := a.engine.SubmitMonth(ctx, submitYear, month, submitForce)
	recordRun(ctx, a.store, timesheet.RunSubmit, first, first.EndOfMonth(), nil, runErr)
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if sub.Submitted {
		fmt.Fprintf(out, "Submitted %s: logged %s of %s expected\n",
			sub.Period, worklog.FormatHours(sub.Actual), worklog.FormatHours(sub.Expected))
	} else {
		fmt.Fprintf(out, "Not submitted (%s)\n", sub.Reason)
	}
	return nil
}

// recordRun journals a finished CLI run. Journal failures only warn; the
// run itself already happened.
func recordRun(ctx context.Context, journal timesheet.RunJournal, kind timesheet.RunKind, from, to schedule.Date, days []timesheet.DaySummary, runErr error) {
	now := time.Now().UTC()
	run := timesheet.SyncRun{
		ID:         uuid.NewString(),
		Kind:       kind,
		Trigger:    timesheet.TriggerManual,
		From:       from,
		To:         to,
		Status:     timesheet.RunCompleted,
		Days:       days,
		StartedAt:  now,
		FinishedAt: now,
	}
	if runErr != nil {
		run.Status = timesheet.RunFailed
		run.Error = runErr.Error()
	}
	if err := journal.SaveRun(ctx, run); err != nil {
		log.Printf("[CLI] Warning: run not journaled: %v", err)
	}
}
