package stats

import (
	"math"
	"sort"
	"time"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
)

// Summary is the rollup shown in the month header.
type Summary struct {
	MaxAmount          int `json:"maxAmount"`
	AverageAmount      int `json:"averageAmount"`
	DaysInMonth        int `json:"daysInMonth"`
	DaysInMonthLeft    int `json:"daysInMonthLeft"`
	GoalReachedCounter int `json:"goalReachedCounter"`
}

// Extended holds the secondary month figures.
type Extended struct {
	Drinks       int `json:"drinks"`
	Liters       int `json:"liters"`
	Types        int `json:"types"`
	DrinksPerDay int `json:"drinksPerDay"`
}

// MonthDays returns the initialized days under monthKey whose own date lies
// in that month, ordered by date. Days of neighbouring months sharing a week
// are skipped.
func MonthDays(m core.Month, monthKey string) []*core.Day {
	weeks, ok := m[monthKey]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var days []*core.Day
	for _, week := range weeks {
		for _, d := range week {
			if d == nil || d.Date.IsZero() || d.Date.MonthKey() != monthKey {
				continue
			}
			key := d.Date.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date.Time) })
	return days
}

// MonthlyDrinks flattens the drinks of every day belonging to monthKey. It
// returns nil when there are none.
func MonthlyDrinks(m core.Month, monthKey string) []core.Drink {
	var out []core.Drink
	for _, d := range MonthDays(m, monthKey) {
		out = append(out, d.Drinks()...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// monthWindow returns the full length of the month and how many of its days
// have elapsed at now. Past months count fully, future months not at all.
func monthWindow(monthKey string, now time.Time) (length, elapsed int, ok bool) {
	first, err := calendar.ParseKey(monthKey, calendar.MonthFormat)
	if err != nil {
		return 0, 0, false
	}
	length = calendar.DaysInMonth(first.Year(), first.Month())
	ny, nm, nd := now.Date()
	switch {
	case first.Year() == ny && first.Month() == nm:
		return length, nd, true
	case first.Year() < ny || (first.Year() == ny && first.Month() < nm):
		return length, length, true
	default:
		return length, 0, true
	}
}

// MonthStats rolls up monthKey as of now. In the current month only days up
// to and including today count.
func MonthStats(m core.Month, monthKey string, now time.Time) Summary {
	length, elapsed, ok := monthWindow(monthKey, now)
	if !ok {
		return Summary{}
	}
	st := Summary{
		DaysInMonth:     length,
		DaysInMonthLeft: length - elapsed,
	}

	total := 0
	for _, d := range MonthDays(m, monthKey) {
		if d.Date.Day() > elapsed {
			continue
		}
		sum := DailyAmountSum(d)
		total += sum
		if sum > st.MaxAmount {
			st.MaxAmount = sum
		}
		if GoalReached(d) {
			st.GoalReachedCounter++
		}
	}
	if elapsed > 0 {
		st.AverageAmount = int(math.Round(float64(total) / float64(elapsed)))
	}
	return st
}

// ExtendedStats counts drinks, whole liters and distinct types of the month.
// DrinksPerDay is rounded and zero when no day has elapsed.
func ExtendedStats(m core.Month, monthKey string, now time.Time) Extended {
	drinks := MonthlyDrinks(m, monthKey)
	var ext Extended
	types := make(map[string]struct{})
	total := 0
	for _, d := range drinks {
		total += d.Amount
		types[d.Type] = struct{}{}
	}
	ext.Drinks = len(drinks)
	ext.Liters = total / 1000
	ext.Types = len(types)

	// Unlike MonthStats, future months divide by their full length.
	length, elapsed, ok := monthWindow(monthKey, now)
	if !ok {
		return ext
	}
	if elapsed == 0 {
		elapsed = length
	}
	if ext.Drinks > 0 {
		ext.DrinksPerDay = int(math.Round(float64(ext.Drinks) / float64(elapsed)))
	}
	return ext
}

// PrimaryMonthKey returns the earliest valid month key of m.
func PrimaryMonthKey(m core.Month) (string, bool) {
	var (
		best  string
		bestT time.Time
	)
	for key := range m {
		t, err := calendar.ParseKey(key, calendar.MonthFormat)
		if err != nil {
			continue
		}
		if best == "" || t.Before(bestT) {
			best, bestT = key, t
		}
	}
	return best, best != ""
}
