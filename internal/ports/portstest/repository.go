// Package portstest holds the behaviour every ports.Repository must show.
package portstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/ports"
)

// RunRepository exercises repo constructors against the shared contract.
// newRepo must return an empty repository.
func RunRepository(t *testing.T, newRepo func(t *testing.T) ports.Repository) {
	t.Helper()

	t.Run("EnsureDayIsIdempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		date := core.NewDate(2024, time.March, 15)

		d, err := repo.EnsureDay(ctx, "u1", date, 2000)
		if err != nil {
			t.Fatalf("EnsureDay: %v", err)
		}
		if d.Goal != 2000 || d.Date.String() != "15.03.2024" {
			t.Fatalf("unexpected day %s/%d", d.Date, d.Goal)
		}
		again, err := repo.EnsureDay(ctx, "u1", date, 3000)
		if err != nil {
			t.Fatalf("EnsureDay again: %v", err)
		}
		if again.Goal != 2000 {
			t.Fatalf("EnsureDay overwrote goal: %d", again.Goal)
		}
	})

	t.Run("MutationsRequireDay", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		date := core.NewDate(2024, time.March, 15)

		if _, err := repo.AddDrink(ctx, "u1", date, core.Drink{ID: "d1", Amount: 250, Type: "water", Hour: 8}); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("AddDrink err = %v, want ErrNotFound", err)
		}
		if _, err := repo.SetDailyGoal(ctx, "u1", date, 2500); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("SetDailyGoal err = %v, want ErrNotFound", err)
		}
		if _, err := repo.RemoveLastDrink(ctx, "u1", date); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("RemoveLastDrink err = %v, want ErrNotFound", err)
		}
		d, err := repo.GetDay(ctx, "u1", date)
		if err != nil || d != nil {
			t.Fatalf("GetDay on empty repo = %v, %v", d, err)
		}
	})

	t.Run("DrinksAndStepBack", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		date := core.NewDate(2024, time.March, 15)
		mustEnsure(t, repo, "u1", date, 2000)

		steps := []core.Drink{
			{ID: "d1", Amount: 250, Type: "water", Hour: 8},
			{ID: "d2", Amount: 300, Type: "tea", Hour: 8},
			{ID: "d3", Amount: 500, Type: "tea", Hour: 14},
		}
		for _, dr := range steps {
			if _, err := repo.AddDrink(ctx, "u1", date, dr); err != nil {
				t.Fatalf("AddDrink %s: %v", dr.ID, err)
			}
		}

		d, err := repo.GetDay(ctx, "u1", date)
		if err != nil || d == nil {
			t.Fatalf("GetDay = %v, %v", d, err)
		}
		if len(d.Activity[8]) != 2 || d.Activity[8][0].ID != "d1" || d.Activity[8][1].ID != "d2" {
			t.Fatalf("hour 8 = %+v", d.Activity[8])
		}

		d, err = repo.RemoveLastDrink(ctx, "u1", date)
		if err != nil {
			t.Fatalf("RemoveLastDrink: %v", err)
		}
		if d.Activity[14] != nil {
			t.Fatalf("hour 14 should be empty, got %+v", d.Activity[14])
		}
		d, _ = repo.RemoveLastDrink(ctx, "u1", date)
		if len(d.Activity[8]) != 1 || d.Activity[8][0].ID != "d1" {
			t.Fatalf("step back removed the wrong drink: %+v", d.Activity[8])
		}
		repo.RemoveLastDrink(ctx, "u1", date)
		d, err = repo.RemoveLastDrink(ctx, "u1", date)
		if err != nil || len(d.Drinks()) != 0 {
			t.Fatalf("step back on empty day = %+v, %v", d, err)
		}

		d, err = repo.SetDailyGoal(ctx, "u1", date, 3500)
		if err != nil || d.Goal != 3500 {
			t.Fatalf("SetDailyGoal = %+v, %v", d, err)
		}
	})

	t.Run("FetchMonthCoversAdjacentDays", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		// 26.02.2024 opens ISO week 09, which also holds 01.03.2024.
		for _, d := range []core.Date{
			core.NewDate(2024, time.February, 26),
			core.NewDate(2024, time.March, 1),
			core.NewDate(2024, time.March, 31),
			core.NewDate(2024, time.April, 1),
		} {
			mustEnsure(t, repo, "u1", d, 2000)
		}
		mustEnsure(t, repo, "other", core.NewDate(2024, time.March, 5), 2000)

		m, err := repo.FetchMonth(ctx, "u1", 2024, time.March)
		if err != nil {
			t.Fatalf("FetchMonth: %v", err)
		}
		weeks, ok := m["03-2024"]
		if !ok || len(m) != 1 {
			t.Fatalf("payload keys = %v", keys(m))
		}
		want := calendar.MonthWeekKeys(2024, time.March)
		if len(weeks) != len(want) {
			t.Fatalf("got %d weeks, want %d", len(weeks), len(want))
		}
		if weeks["09-2024"][0] == nil || weeks["09-2024"][4] == nil {
			t.Fatalf("week 09 should hold 26.02 and 01.03: %+v", weeks["09-2024"])
		}
		if weeks["13-2024"][6] == nil {
			t.Fatalf("31.03 missing")
		}
		if weeks["10-2024"][1] != nil {
			t.Fatalf("another account's day leaked into the payload")
		}
		for key := range weeks {
			if key == "14-2024" {
				t.Fatalf("week of 01.04 should not be part of March")
			}
		}
	})

	t.Run("GetWeek", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		mustEnsure(t, repo, "u1", core.NewDate(2024, time.March, 11), 2000)
		mustEnsure(t, repo, "u1", core.NewDate(2024, time.March, 17), 1800)

		w, err := repo.GetWeek(ctx, "u1", core.NewDate(2024, time.March, 14))
		if err != nil {
			t.Fatalf("GetWeek: %v", err)
		}
		if w[0] == nil || w[6] == nil || w[6].Goal != 1800 {
			t.Fatalf("week = %+v", w)
		}
		for i := 1; i < 6; i++ {
			if w[i] != nil {
				t.Fatalf("slot %d should be empty", i)
			}
		}
	})

	t.Run("Controls", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		c, err := repo.GetControls(ctx, "u1")
		if err != nil || c.Amount != nil || c.Type != nil || c.Goal != nil {
			t.Fatalf("empty controls = %+v, %v", c, err)
		}
		if _, err := repo.SetControls(ctx, "u1", core.Controls{Amount: core.IntPtr(250), Type: core.StringPtr("water")}); err != nil {
			t.Fatalf("SetControls: %v", err)
		}
		c, err = repo.SetControls(ctx, "u1", core.Controls{Goal: core.IntPtr(2500)})
		if err != nil {
			t.Fatalf("SetControls: %v", err)
		}
		if c.Amount == nil || *c.Amount != 250 || c.Type == nil || *c.Type != "water" || c.Goal == nil || *c.Goal != 2500 {
			t.Fatalf("merged controls = %+v", c)
		}
		got, _ := repo.GetControls(ctx, "u1")
		if got.Goal == nil || *got.Goal != 2500 {
			t.Fatalf("GetControls = %+v", got)
		}
	})

	t.Run("SummariesAndDirtyMonths", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.GetSummary(ctx, "u1", "03-2024"); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("GetSummary err = %v, want ErrNotFound", err)
		}

		mustEnsure(t, repo, "u1", core.NewDate(2024, time.March, 15), 2000)
		refs, err := repo.DirtyMonths(ctx, 10)
		if err != nil {
			t.Fatalf("DirtyMonths: %v", err)
		}
		if len(refs) != 1 || refs[0] != (ports.MonthRef{UserID: "u1", MonthKey: "03-2024"}) {
			t.Fatalf("dirty = %+v", refs)
		}

		sum := core.MonthSummary{
			UserID:      "u1",
			MonthKey:    "03-2024",
			TotalAmount: 750,
			DaysInMonth: 31,
			UpdatedAt:   time.Now().Add(time.Minute),
		}
		if err := repo.SaveSummary(ctx, sum); err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
		refs, _ = repo.DirtyMonths(ctx, 10)
		if len(refs) != 0 {
			t.Fatalf("month still dirty after save: %+v", refs)
		}
		got, err := repo.GetSummary(ctx, "u1", "03-2024")
		if err != nil || got.TotalAmount != 750 || got.DaysInMonth != 31 {
			t.Fatalf("GetSummary = %+v, %v", got, err)
		}
	})

	t.Run("StaleSummaryKeepsDirtyMark", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		computed := time.Now().Add(-time.Hour)
		mustEnsure(t, repo, "u1", core.NewDate(2024, time.March, 15), 2000)
		if err := repo.SaveSummary(ctx, core.MonthSummary{UserID: "u1", MonthKey: "03-2024", UpdatedAt: computed}); err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
		refs, _ := repo.DirtyMonths(ctx, 10)
		if len(refs) != 1 {
			t.Fatalf("summary computed before the change must not clear dirty: %+v", refs)
		}
	})
}

func mustEnsure(t *testing.T, repo ports.Repository, userID string, date core.Date, goal int) {
	t.Helper()
	if _, err := repo.EnsureDay(context.Background(), userID, date, goal); err != nil {
		t.Fatalf("EnsureDay %s: %v", date, err)
	}
}

func keys(m core.Month) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
