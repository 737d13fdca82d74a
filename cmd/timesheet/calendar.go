package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/worklog-engine/config"
	"github.com/warp/worklog-engine/overhead"
	"github.com/warp/worklog-engine/schedule"
	"github.com/warp/worklog-engine/timesheet"
)

var (
	calendarYear  int
	calendarMonth int
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Render a classified month calendar.",
	Long:  `Prints every day of a month with its classification (working, weekend, holiday, leave, compensatory) and the month's expected working total. Does not contact the tracker or ledger.`,
	RunE:  runCalendarCommand,
}

var overheadCmd = &cobra.Command{
	Use:   "overhead",
	Short: "Show the overhead allocation policy.",
	RunE:  runOverheadCommand,
}

func init() {
	calendarCmd.Flags().IntVar(&calendarYear, "year", 0, "Year to render (default current).")
	calendarCmd.Flags().IntVar(&calendarMonth, "month", 0, "Month to render, 1-12 (default current).")
}

func runCalendarCommand(cmd *cobra.Command, args []string) error {
	today := schedule.Today()
	if calendarYear == 0 {
		calendarYear = today.Year()
	}
	if calendarMonth == 0 {
		calendarMonth = int(today.Month())
	}
	month, err := validateMonthFlag(calendarMonth)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	sched, err := buildSchedule(ctx, cfg, st)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	timesheet.RenderMonth(out, sched.MonthCalendar(calendarYear, month), cfg.DailyTarget())
	for _, w := range sched.YearEndWarnings(today) {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}

func runOverheadCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	desc := overhead.NewPolicy(cfg.BuildOverhead()).Describe()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Overhead project:  %s\n", orNone(desc.ProjectKey))
	fmt.Fprintf(out, "Daily baseline:    %sh\n", desc.BaselineHours)
	fmt.Fprintf(out, "Cycle:             %s\n", orNone(desc.CycleID))
	fmt.Fprintf(out, "Planning window:   %d working days\n", desc.PlanningWindowDays)
	fmt.Fprintf(out, "Leave target:      %s\n", orNone(desc.LeaveTarget))
	fmt.Fprintf(out, "Fallback target:   %s\n", orNone(desc.FallbackTarget))

	printTargets(cmd, "Current cycle targets", desc.CurrentCycle, desc.CurrentCycleMode)
	printTargets(cmd, "Planning cycle targets", desc.PlanningCycle, desc.PlanningCycleMode)
	return nil
}

func printTargets(cmd *cobra.Command, label string, targets []overhead.DescribedTarget, mode string) {
	out := cmd.OutOrStdout()
	if len(targets) == 0 {
		fmt.Fprintf(out, "%s: none\n", label)
		return
	}
	fmt.Fprintf(out, "%s (%s):\n", label, mode)
	for _, t := range targets {
		if t.WeightHours != "" {
			fmt.Fprintf(out, "  %-12s weight %sh\n", t.Key, t.WeightHours)
		} else {
			fmt.Fprintf(out, "  %s\n", t.Key)
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
