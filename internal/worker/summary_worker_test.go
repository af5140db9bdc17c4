package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"watertrack/internal/amqp"
	"watertrack/internal/core"
	"watertrack/internal/memory"
	"watertrack/internal/services"
)

type fakeRebuilder struct {
	mu      sync.Mutex
	months  []string
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context, userID, monthKey string) (core.MonthSummary, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.months = append(f.months, userID+"/"+monthKey)
	f.mu.Unlock()
	return core.MonthSummary{UserID: userID, MonthKey: monthKey}, f.err
}

func TestHandleDayChanged(t *testing.T) {
	rb := &fakeRebuilder{}
	w := NewSummaryWorker(rb, memory.New(), 10)

	msg := amqp.NewDayChangedMessage("u1", core.NewDate(2024, time.February, 29))
	if err := w.HandleDayChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleDayChanged: %v", err)
	}
	if diff := cmp.Diff([]string{"u1/02-2024"}, rb.months); diff != "" {
		t.Errorf("rebuilt months mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleDayChanged_Error(t *testing.T) {
	cause := errors.New("disk full")
	w := NewSummaryWorker(&fakeRebuilder{err: cause}, memory.New(), 10)

	err := w.HandleDayChanged(context.Background(), amqp.NewDayChangedMessage("u1", core.NewDate(2024, time.March, 1)))
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped cause so the message is requeued", err)
	}
}

func TestHandleDayChanged_CollapsesConcurrentRebuilds(t *testing.T) {
	rb := &fakeRebuilder{release: make(chan struct{})}
	w := NewSummaryWorker(rb, memory.New(), 10)
	msg := amqp.NewDayChangedMessage("u1", core.NewDate(2024, time.March, 1))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.HandleDayChanged(context.Background(), msg)
		}()
	}
	// let both handlers reach the shared call before releasing it
	time.Sleep(50 * time.Millisecond)
	close(rb.release)
	wg.Wait()

	if n := rb.calls.Load(); n != 1 {
		t.Errorf("rebuild ran %d times, want 1", n)
	}
}

func TestStartupCheck(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	for _, d := range []core.Date{
		core.NewDate(2024, time.January, 5),
		core.NewDate(2024, time.March, 5),
	} {
		if _, err := repo.EnsureDay(ctx, "u1", d, 2000); err != nil {
			t.Fatalf("EnsureDay: %v", err)
		}
	}
	repo.EnsureDay(ctx, "u2", core.NewDate(2024, time.March, 6), 1500)

	w := NewSummaryWorker(services.NewSummaryBuilder(repo, nil), repo, 10)
	if err := w.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}

	refs, _ := repo.DirtyMonths(ctx, 0)
	if len(refs) != 0 {
		t.Fatalf("months still dirty: %+v", refs)
	}
	var got []string
	for _, ref := range []struct{ user, month string }{{"u1", "01-2024"}, {"u1", "03-2024"}, {"u2", "03-2024"}} {
		sum, err := repo.GetSummary(ctx, ref.user, ref.month)
		if err != nil {
			t.Fatalf("GetSummary %s %s: %v", ref.user, ref.month, err)
		}
		got = append(got, sum.UserID+"/"+sum.MonthKey)
	}
	sort.Strings(got)
	if diff := cmp.Diff([]string{"u1/01-2024", "u1/03-2024", "u2/03-2024"}, got); diff != "" {
		t.Errorf("summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestStartupCheck_Empty(t *testing.T) {
	rb := &fakeRebuilder{}
	w := NewSummaryWorker(rb, memory.New(), 10)
	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if rb.calls.Load() != 0 {
		t.Errorf("rebuild called without dirty months")
	}
}
