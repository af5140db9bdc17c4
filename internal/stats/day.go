// Package stats derives every displayed figure from tracker data.
//
// All functions are pure and total: missing days, weeks or months degrade to
// zero values instead of errors.
package stats

import (
	"math"

	"watertrack/internal/core"
)

// DailyAmountSum is the total intake of the day in ml.
func DailyAmountSum(day *core.Day) int {
	if day == nil {
		return 0
	}
	sum := 0
	for _, bucket := range day.Activity {
		for _, d := range bucket {
			sum += d.Amount
		}
	}
	return sum
}

// HourlySums returns the intake per hour of the day.
func HourlySums(day *core.Day) [core.HoursPerDay]int {
	var out [core.HoursPerDay]int
	if day == nil {
		return out
	}
	for h, bucket := range day.Activity {
		for _, d := range bucket {
			out[h] += d.Amount
		}
	}
	return out
}

// GoalReached reports whether the day has a goal and met it.
func GoalReached(day *core.Day) bool {
	if day == nil || day.Goal <= 0 {
		return false
	}
	return DailyAmountSum(day) >= day.Goal
}

// GoalProgress is the share of the goal reached, in percent with one decimal.
func GoalProgress(day *core.Day) float64 {
	if day == nil || day.Goal <= 0 {
		return 0
	}
	pct := float64(DailyAmountSum(day)) / float64(day.Goal) * 100
	return math.Round(pct*10) / 10
}

// DayOverview summarizes one slot of a week.
type DayOverview struct {
	Weekday int
	Date    core.Date
	Present bool
	Sum     int
	Goal    int
	Reached bool
}

// WeekSums returns the daily totals of the week, Monday first.
func WeekSums(week core.Week) [core.DaysPerWeek]int {
	var out [core.DaysPerWeek]int
	for i, d := range week {
		out[i] = DailyAmountSum(d)
	}
	return out
}

func WeekOverview(week core.Week) [core.DaysPerWeek]DayOverview {
	var out [core.DaysPerWeek]DayOverview
	for i, d := range week {
		out[i].Weekday = i
		if d == nil {
			continue
		}
		out[i].Date = d.Date
		out[i].Present = true
		out[i].Sum = DailyAmountSum(d)
		out[i].Goal = d.Goal
		out[i].Reached = GoalReached(d)
	}
	return out
}
