package memory

import (
	"context"
	"testing"
	"time"

	"watertrack/internal/core"
	"watertrack/internal/ports"
	"watertrack/internal/ports/portstest"
)

func TestRepositoryContract(t *testing.T) {
	portstest.RunRepository(t, func(t *testing.T) ports.Repository {
		return New()
	})
}

func TestReadsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	date := core.NewDate(2024, time.March, 15)
	if _, err := s.EnsureDay(ctx, "u1", date, 2000); err != nil {
		t.Fatalf("EnsureDay: %v", err)
	}
	if _, err := s.AddDrink(ctx, "u1", date, core.Drink{Amount: 250, Type: "water", Hour: 8}); err != nil {
		t.Fatalf("AddDrink: %v", err)
	}

	d, _ := s.GetDay(ctx, "u1", date)
	d.Activity[8][0].Amount = 1
	d.Goal = 1

	again, _ := s.GetDay(ctx, "u1", date)
	if again.Goal != 2000 || again.Activity[8][0].Amount != 250 {
		t.Fatalf("caller mutation leaked into the store: %+v", again)
	}
}

func TestDirtyMonthsLimitAndOrder(t *testing.T) {
	s := New()
	clock := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ctx := context.Background()
	for _, d := range []core.Date{
		core.NewDate(2024, time.May, 1),
		core.NewDate(2024, time.March, 1),
		core.NewDate(2024, time.April, 1),
	} {
		if _, err := s.EnsureDay(ctx, "u1", d, 2000); err != nil {
			t.Fatalf("EnsureDay: %v", err)
		}
	}
	refs, err := s.DirtyMonths(ctx, 2)
	if err != nil {
		t.Fatalf("DirtyMonths: %v", err)
	}
	if len(refs) != 2 || refs[0].MonthKey != "05-2024" || refs[1].MonthKey != "03-2024" {
		t.Fatalf("refs = %+v", refs)
	}
}
