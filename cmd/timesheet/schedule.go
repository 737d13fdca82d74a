package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/warp/worklog-engine/config"
	"github.com/warp/worklog-engine/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage leave, holiday and working-day overrides.",
	Long:  `Overrides adjust the calendar for dates the locale tables cannot know: personal leave, ad-hoc company holidays, and compensatory working weekend days. Edits are written back to the config file.`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured override dates.",
	RunE:  runScheduleListCommand,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <leave|holiday|working> <YYYY-MM-DD>",
	Short: "Mark a date as leave, ad-hoc holiday or compensatory working.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editOverride(cmd, args[0], args[1], true)
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <leave|holiday|working> <YYYY-MM-DD>",
	Short: "Unmark an override date.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editOverride(cmd, args[0], args[1], false)
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
}

func runScheduleListCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	out := cmd.OutOrStdout()
	printDates(out, "Leave", cfg.Schedule.Leave)
	printDates(out, "Ad-hoc holidays", cfg.Schedule.AdHocHolidays)
	printDates(out, "Compensatory working", cfg.Schedule.CompensatoryWorking)
	return nil
}

func editOverride(cmd *cobra.Command, kind, rawDate string, add bool) error {
	date, err := schedule.ParseDate(rawDate)
	if err != nil {
		return fmt.Errorf("invalid date %q (use YYYY-MM-DD)", rawDate)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	overrides, err := cfg.BuildOverrides()
	if err != nil {
		return err
	}

	var set *map[schedule.Date]bool
	switch kind {
	case "leave":
		set = &overrides.Leave
	case "holiday":
		set = &overrides.AdHocHolidays
	case "working":
		set = &overrides.CompensatoryWorking
	default:
		return fmt.Errorf("unknown override kind %q (leave, holiday, working)", kind)
	}
	if *set == nil {
		*set = make(map[schedule.Date]bool)
	}

	out := cmd.OutOrStdout()
	if add {
		if (*set)[date] {
			fmt.Fprintf(out, "%s already marked %s\n", date, kind)
			return nil
		}
		(*set)[date] = true
	} else {
		if !(*set)[date] {
			fmt.Fprintf(out, "%s was not marked %s\n", date, kind)
			return nil
		}
		delete(*set, date)
	}

	cfg.SetOverrides(overrides)
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("save config %s: %w", configPath, err)
	}

	if add {
		fmt.Fprintf(out, "Marked %s as %s\n", date, kind)
	} else {
		fmt.Fprintf(out, "Unmarked %s as %s\n", date, kind)
	}
	return nil
}

func printDates(out io.Writer, label string, dates []string) {
	if len(dates) == 0 {
		fmt.Fprintf(out, "%s: none\n", label)
		return
	}
	fmt.Fprintf(out, "%s:\n", label)
	for _, d := range dates {
		fmt.Fprintf(out, "  %s\n", d)
	}
}
