package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
)

const defaultLiquidType = "water"

func newDrinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drink <ml> [type]",
		Short: "Record a drink at the current hour",
		Long:  "Record a drink at the current hour. The type defaults to the last used one.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("amount %q is not a number", args[0])
			}
			now := a.now()
			today := core.DateOf(now).Time
			if err := a.load(cmd.Context(), today); err != nil {
				return err
			}

			liquidType := defaultLiquidType
			if c := a.session.State().Controls; c.Type != nil && *c.Type != "" {
				liquidType = *c.Type
			}
			if len(args) == 2 {
				liquidType = args[1]
			}

			if _, err := a.client.AddDrink(cmd.Context(), calendar.HourKey(now), amount, liquidType); err != nil {
				return a.explain(err)
			}
			return a.showToday(cmd)
		},
	}
}

func newGoalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "goal <ml>",
		Short: "Set today's goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("goal %q is not a number", args[0])
			}
			if _, err := a.client.SetDay(cmd.Context(), core.DateOf(a.now()), goal); err != nil {
				return a.explain(err)
			}
			return a.showToday(cmd)
		},
	}
}

func newUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Remove today's latest drink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.client.StepBack(cmd.Context(), core.DateOf(a.now())); err != nil {
				return a.explain(err)
			}
			return a.showToday(cmd)
		},
	}
}

// showToday refreshes the session and prints today's header line.
func (a *app) showToday(cmd *cobra.Command) error {
	today := core.DateOf(a.now()).Time
	if err := a.refresh(cmd.Context(), today); err != nil {
		return err
	}
	if day, ok := a.session.Day(today); ok {
		printDayHeader(cmd.OutOrStdout(), day)
	}
	return nil
}
