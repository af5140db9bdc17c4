package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/ports"
	"watertrack/internal/store"
)

// Store is a process-local repository. Days are kept per account and copied
// on every read and write so callers never share state with it.
type Store struct {
	mu        sync.Mutex
	days      map[string]map[string]*core.Day // user -> "DD.MM.YYYY" -> day
	controls  map[string]core.Controls
	summaries map[ports.MonthRef]core.MonthSummary
	dirty     map[ports.MonthRef]time.Time
	now       func() time.Time
}

func New() *Store {
	return &Store{
		days:      make(map[string]map[string]*core.Day),
		controls:  make(map[string]core.Controls),
		summaries: make(map[ports.MonthRef]core.MonthSummary),
		dirty:     make(map[ports.MonthRef]time.Time),
		now:       time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) dayLocked(userID string, date core.Date) *core.Day {
	return s.days[userID][date.String()]
}

func (s *Store) putLocked(userID string, d *core.Day) {
	byDay, ok := s.days[userID]
	if !ok {
		byDay = make(map[string]*core.Day)
		s.days[userID] = byDay
	}
	byDay[d.Date.String()] = d
	s.dirty[ports.MonthRef{UserID: userID, MonthKey: d.Date.MonthKey()}] = s.now()
}

// FetchMonth implements ports.MonthReader.
func (s *Store) FetchMonth(_ context.Context, userID string, year int, month time.Month) (core.Month, error) {
	start, end := calendar.MonthSpan(year, month, time.UTC)

	s.mu.Lock()
	defer s.mu.Unlock()
	var days []*core.Day
	for _, d := range s.days[userID] {
		if d.Date.Before(start) || d.Date.After(end) {
			continue
		}
		days = append(days, d.Clone())
	}
	return store.Assemble(year, month, days), nil
}

// GetDay implements ports.DayReader.
func (s *Store) GetDay(_ context.Context, userID string, date core.Date) (*core.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayLocked(userID, date).Clone(), nil
}

// GetWeek implements ports.DayReader.
func (s *Store) GetWeek(_ context.Context, userID string, date core.Date) (core.Week, error) {
	monday := date.AddDate(0, 0, -calendar.WeekdayIndex(date.Time))

	s.mu.Lock()
	defer s.mu.Unlock()
	var w core.Week
	for i := range w {
		w[i] = s.dayLocked(userID, core.DateOf(monday.AddDate(0, 0, i))).Clone()
	}
	return w, nil
}

func (s *Store) EnsureDay(_ context.Context, userID string, date core.Date, goal int) (*core.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.dayLocked(userID, date); d != nil {
		return d.Clone(), nil
	}
	d := core.NewDay(date, goal)
	s.putLocked(userID, d)
	return d.Clone(), nil
}

func (s *Store) AddDrink(_ context.Context, userID string, date core.Date, drink core.Drink) (*core.Day, error) {
	return s.mutate(userID, date, func(d *core.Day) {
		d.Activity[drink.Hour] = append(d.Activity[drink.Hour], drink)
	})
}

func (s *Store) RemoveLastDrink(_ context.Context, userID string, date core.Date) (*core.Day, error) {
	return s.mutate(userID, date, func(d *core.Day) {
		h, ok := d.LastDrinkHour()
		if !ok {
			return
		}
		bucket := d.Activity[h][:len(d.Activity[h])-1]
		if len(bucket) == 0 {
			bucket = nil
		}
		d.Activity[h] = bucket
	})
}

func (s *Store) SetDailyGoal(_ context.Context, userID string, date core.Date, goal int) (*core.Day, error) {
	return s.mutate(userID, date, func(d *core.Day) {
		d.Goal = goal
	})
}

func (s *Store) mutate(userID string, date core.Date, fn func(*core.Day)) (*core.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.dayLocked(userID, date)
	if cur == nil {
		return nil, ports.ErrNotFound
	}
	next := cur.Clone()
	fn(next)
	s.putLocked(userID, next)
	return next.Clone(), nil
}

// GetControls implements ports.ControlsStore.
func (s *Store) GetControls(_ context.Context, userID string) (core.Controls, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Controls{}.Merge(s.controls[userID]), nil
}

func (s *Store) SetControls(_ context.Context, userID string, c core.Controls) (core.Controls, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.controls[userID].Merge(c)
	s.controls[userID] = merged
	return core.Controls{}.Merge(merged), nil
}

// SaveSummary implements ports.SummaryStore.
func (s *Store) SaveSummary(_ context.Context, sum core.MonthSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := ports.MonthRef{UserID: sum.UserID, MonthKey: sum.MonthKey}
	s.summaries[ref] = sum
	if at, ok := s.dirty[ref]; ok && !at.After(sum.UpdatedAt) {
		delete(s.dirty, ref)
	}
	return nil
}

func (s *Store) GetSummary(_ context.Context, userID, monthKey string) (core.MonthSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[ports.MonthRef{UserID: userID, MonthKey: monthKey}]
	if !ok {
		return core.MonthSummary{}, ports.ErrNotFound
	}
	return sum, nil
}

// DirtyMonths returns the oldest dirty months first.
func (s *Store) DirtyMonths(_ context.Context, limit int) ([]ports.MonthRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]ports.MonthRef, 0, len(s.dirty))
	for ref := range s.dirty {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		ai, aj := s.dirty[refs[i]], s.dirty[refs[j]]
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		if refs[i].UserID != refs[j].UserID {
			return refs[i].UserID < refs[j].UserID
		}
		return refs[i].MonthKey < refs[j].MonthKey
	})
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}
