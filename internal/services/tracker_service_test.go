package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"watertrack/internal/core"
	"watertrack/internal/memory"
	"watertrack/internal/ports"
)

type fakePublisher struct {
	mu    sync.Mutex
	dates []string
	err   error
}

func (p *fakePublisher) PublishDayChanged(_ context.Context, userID string, date core.Date) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dates = append(p.dates, userID+"@"+date.String())
	return p.err
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.dates...)
}

func newTestService(t *testing.T) (*TrackerService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	svc := NewTrackerService(memory.New(), pub)
	svc.now = func() time.Time { return time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC) }
	return svc, pub
}

func TestTrackerService_AddDrinkInitializesDay(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SetControls(ctx, "u1", core.Controls{Goal: core.IntPtr(2500)}); err != nil {
		t.Fatalf("SetControls: %v", err)
	}
	day, err := svc.AddDrink(ctx, "u1", "15.03.2024.08", 250, "water")
	if err != nil {
		t.Fatalf("AddDrink: %v", err)
	}
	if day.Goal != 2500 {
		t.Errorf("goal = %d, want control goal 2500", day.Goal)
	}
	if len(day.Activity[8]) != 1 || day.Activity[8][0].ID == "" {
		t.Fatalf("hour 8 = %+v, want one drink with an ID", day.Activity[8])
	}

	want := []string{"u1@15.03.2024", "u1@15.03.2024"}
	if diff := cmp.Diff(want, pub.published()); diff != "" {
		t.Errorf("published mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackerService_AddDrinkValidation(t *testing.T) {
	tests := []struct {
		name    string
		hourKey string
		amount  int
		typ     string
	}{
		{"bad key", "15.03.2024", 250, "water"},
		{"bad hour", "15.03.2024.24", 250, "water"},
		{"zero amount", "15.03.2024.08", 0, "water"},
		{"too much", "15.03.2024.08", core.MaxAmount + 1, "water"},
		{"long type", "15.03.2024.08", 250, "an absurdly long liquid type that nobody types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub := newTestService(t)
			_, err := svc.AddDrink(context.Background(), "u1", tt.hourKey, tt.amount, tt.typ)
			if !errors.Is(err, core.ErrValidationFailed) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if n := len(pub.published()); n != 0 {
				t.Errorf("published %d messages for a rejected drink", n)
			}
		})
	}
}

func TestTrackerService_DailyLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < core.MaxGoal/core.MaxAmount; i++ {
		if _, err := svc.AddDrink(ctx, "u1", "15.03.2024.09", core.MaxAmount, "water"); err != nil {
			t.Fatalf("AddDrink %d: %v", i, err)
		}
	}
	_, err := svc.AddDrink(ctx, "u1", "15.03.2024.10", 1, "water")
	if !errors.Is(err, core.ErrDailyLimit) {
		t.Fatalf("err = %v, want ErrDailyLimit", err)
	}
}

func TestTrackerService_StepBack(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := core.NewDate(2024, time.March, 15)

	if _, err := svc.StepBack(ctx, "u1", date); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("StepBack on missing day err = %v, want ErrNotFound", err)
	}

	svc.AddDrink(ctx, "u1", "15.03.2024.08", 250, "water")
	svc.AddDrink(ctx, "u1", "15.03.2024.12", 300, "tea")

	day, err := svc.StepBack(ctx, "u1", date)
	if err != nil {
		t.Fatalf("StepBack: %v", err)
	}
	if day.Activity[12] != nil || len(day.Activity[8]) != 1 {
		t.Fatalf("unexpected activity after step back: %+v", day.Activity)
	}
}

func TestTrackerService_SetDayAndGoal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := core.NewDate(2024, time.March, 15)

	if _, err := svc.SetDailyGoal(ctx, "u1", date, 2500); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("SetDailyGoal on missing day err = %v, want ErrNotFound", err)
	}

	day, err := svc.SetDay(ctx, "u1", date, 1800)
	if err != nil || day.Goal != 1800 {
		t.Fatalf("SetDay = %+v, %v", day, err)
	}
	day, err = svc.SetDay(ctx, "u1", date, 2200)
	if err != nil || day.Goal != 2200 {
		t.Fatalf("SetDay on existing day = %+v, %v", day, err)
	}
	day, err = svc.SetDailyGoal(ctx, "u1", date, 3000)
	if err != nil || day.Goal != 3000 {
		t.Fatalf("SetDailyGoal = %+v, %v", day, err)
	}

	if _, err := svc.SetDailyGoal(ctx, "u1", date, core.MaxGoal+1); !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestTrackerService_TodayDefaultsToNow(t *testing.T) {
	svc, _ := newTestService(t)

	day, created, err := svc.Today(context.Background(), "u1", core.Date{})
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if !created || day.Date.String() != "15.03.2024" || day.Goal != core.DefaultGoal {
		t.Fatalf("Today = %s/%d created=%v", day.Date, day.Goal, created)
	}

	if _, created, err := svc.Today(context.Background(), "u1", core.Date{}); err != nil || created {
		t.Fatalf("second Today created=%v err=%v, want an existing day", created, err)
	}
}

func TestTrackerService_SetControlValues(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := core.NewDate(2024, time.March, 15)
	in := ControlValues{Amount: 300, Goal: 2400, Type: "tea", Date: date}

	if _, err := svc.SetControlValues(ctx, "u1", in); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for a missing day", err)
	}

	svc.SetControls(ctx, "u1", core.Controls{Goal: core.IntPtr(2000)})
	svc.Today(ctx, "u1", date)

	got, err := svc.SetControlValues(ctx, "u1", in)
	if err != nil {
		t.Fatalf("SetControlValues: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	c, _ := svc.Controls(ctx, "u1")
	if *c.Goal != 2000 || *c.Amount != 300 || *c.Type != "tea" {
		t.Errorf("controls = %d/%d/%s, stored goal must be kept", *c.Goal, *c.Amount, *c.Type)
	}
}

func TestTrackerService_SetControlValuesCollectsErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetControlValues(context.Background(), "u1", ControlValues{Amount: 0, Goal: 1})
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("err = %v, want joined errors", err)
	}
	if n := len(joined.Unwrap()); n != 3 {
		t.Errorf("got %d errors, want date, amount and goal", n)
	}
}

func TestTrackerService_SetAmountAndType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SetAmountAndType(ctx, "u1", 0, ""); !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("err = %v, want validation error", err)
	}
	c, err := svc.SetAmountAndType(ctx, "u1", 200, "juice")
	if err != nil {
		t.Fatalf("SetAmountAndType: %v", err)
	}
	if *c.Amount != 200 || *c.Type != "juice" || c.Goal != nil {
		t.Errorf("controls = %+v", c)
	}
}

func TestTrackerService_PublishFailureDoesNotFailRequest(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")

	if _, err := svc.AddDrink(context.Background(), "u1", "15.03.2024.08", 250, "water"); err != nil {
		t.Fatalf("AddDrink should succeed without a broker: %v", err)
	}
}

func TestTrackerService_NilPublisher(t *testing.T) {
	svc := NewTrackerService(memory.New(), nil)
	if _, err := svc.AddDrink(context.Background(), "u1", "15.03.2024.08", 250, "water"); err != nil {
		t.Fatalf("AddDrink: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestTrackerService_MonthAndSummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Month(ctx, "u1", 2024, 13); !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("Month(13) err = %v", err)
	}
	if _, err := svc.Summary(ctx, "u1", 2024, time.March); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("Summary err = %v, want ErrNotFound", err)
	}

	svc.AddDrink(ctx, "u1", "15.03.2024.08", 750, "water")
	m, err := svc.Month(ctx, "u1", 2024, time.March)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if _, ok := m["03-2024"]; !ok {
		t.Fatalf("month payload misses its key")
	}

	if _, err := NewSummaryBuilder(svc.repo, nil).Rebuild(ctx, "u1", "03-2024"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	sum, err := svc.Summary(ctx, "u1", 2024, time.March)
	if err != nil || sum.TotalAmount != 750 {
		t.Fatalf("Summary = %+v, %v", sum, err)
	}
}
