package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/stats"
)

var weekdays = [core.DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func newDayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "day [DD.MM.YYYY]",
		Short: "Show the drinks of a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := a.dateArg(args)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context(), date); err != nil {
				return err
			}
			day, ok := a.session.Day(date)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  nothing recorded\n", calendar.DayKey(date))
				return nil
			}
			printDay(cmd.OutOrStdout(), day)
			return nil
		},
	}
}

func newWeekCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "week [DD.MM.YYYY]",
		Short: "Show the daily totals of the week holding a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := a.dateArg(args)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context(), date); err != nil {
				return err
			}
			week, _ := a.session.Week(date)
			printWeek(cmd.OutOrStdout(), date, week)
			return nil
		},
	}
}

func newMonthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "month [MM-YYYY]",
		Short: "Show the statistics of a month (default this month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			first := core.DateOf(a.now()).AddDate(0, 0, 1-a.now().Day())
			if len(args) == 1 {
				t, err := calendar.ParseKey(args[0], calendar.MonthFormat)
				if err != nil {
					return err
				}
				first = t
			}
			if err := a.load(cmd.Context(), first); err != nil {
				return err
			}
			printMonth(cmd.OutOrStdout(), a.session.Month(), calendar.MonthKey(first), a.now())
			return nil
		},
	}
}

// dateArg returns the day named by args[0], today when absent.
func (a *app) dateArg(args []string) (time.Time, error) {
	if len(args) == 0 {
		return core.DateOf(a.now()).Time, nil
	}
	d, err := core.ParseDate(args[0])
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

func printDayHeader(w io.Writer, day *core.Day) {
	fmt.Fprintf(w, "%s  %d / %d ml  (%.1f%%)", day.Date, stats.DailyAmountSum(day), day.Goal, stats.GoalProgress(day))
	if stats.GoalReached(day) {
		fmt.Fprint(w, "  goal reached")
	}
	fmt.Fprintln(w)
}

func printDay(w io.Writer, day *core.Day) {
	printDayHeader(w, day)
	for hour, bucket := range day.Activity {
		for _, d := range bucket {
			fmt.Fprintf(w, "  %02d:00  %5d ml  %s\n", hour, d.Amount, d.Type)
		}
	}
	if types := stats.LiquidTypeBreakdown(day, func() string { return "" }); len(types) > 0 {
		fmt.Fprint(w, "types:")
		for _, t := range types {
			fmt.Fprintf(w, " %s %d ml", t.Label, t.Value)
		}
		fmt.Fprintln(w)
	}
}

func printWeek(w io.Writer, date time.Time, week core.Week) {
	fmt.Fprintf(w, "week %s\n", calendar.WeekKey(date))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, o := range stats.WeekOverview(week) {
		if !o.Present {
			fmt.Fprintf(tw, "%s\t-\t\t\n", weekdays[i])
			continue
		}
		reached := ""
		if o.Reached {
			reached = "reached"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d / %d ml\t%s\n", weekdays[i], o.Date, o.Sum, o.Goal, reached)
	}
	_ = tw.Flush()
}

func printMonth(w io.Writer, m core.Month, monthKey string, now time.Time) {
	sum := stats.MonthStats(m, monthKey, now)
	ext := stats.ExtendedStats(m, monthKey, now)

	fmt.Fprintf(w, "month %s\n", monthKey)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "best day\t%d ml\n", sum.MaxAmount)
	fmt.Fprintf(tw, "daily average\t%d ml\n", sum.AverageAmount)
	fmt.Fprintf(tw, "goal reached\t%d of %d days\n", sum.GoalReachedCounter, sum.DaysInMonth)
	fmt.Fprintf(tw, "days left\t%d\n", sum.DaysInMonthLeft)
	fmt.Fprintf(tw, "drinks\t%d (%d per day)\n", ext.Drinks, ext.DrinksPerDay)
	fmt.Fprintf(tw, "liters\t%d\n", ext.Liters)
	fmt.Fprintf(tw, "types\t%d\n", ext.Types)
	_ = tw.Flush()

	for _, row := range stats.MonthlyDrinkRanking(m, monthKey) {
		fmt.Fprintf(w, "  %-12s %.1f l\n", row.Type, row.Liters)
	}
}
