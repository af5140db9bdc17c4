// Package store holds the month hierarchy addressed by calendar keys.
//
// Lookups never fail: a missing month, week or day yields ok == false.
// Mutation goes through Store, which swaps whole months so readers never
// observe a partially replaced month.
package store

import (
	"sync"
	"time"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
)

func weeksOf(m core.Month, monthKey string) (core.Weeks, bool) {
	if m == nil {
		return nil, false
	}
	w, ok := m[monthKey]
	return w, ok && w != nil
}

func weekOf(ws core.Weeks, weekKey string) (core.Week, bool) {
	w, ok := ws[weekKey]
	return w, ok
}

func slotOf(w core.Week, weekday int) (*core.Day, bool) {
	if weekday < 0 || weekday >= core.DaysPerWeek {
		return nil, false
	}
	d := w[weekday]
	return d, d != nil
}

// GetWeek returns the week containing t, looked up under t's month key.
func GetWeek(m core.Month, t time.Time) (core.Week, bool) {
	ws, ok := weeksOf(m, calendar.MonthKey(t))
	if !ok {
		return core.Week{}, false
	}
	return weekOf(ws, calendar.WeekKey(t))
}

// GetDay returns the initialized day at t.
func GetDay(m core.Month, t time.Time) (*core.Day, bool) {
	w, ok := GetWeek(m, t)
	if !ok {
		return nil, false
	}
	return slotOf(w, calendar.WeekdayIndex(t))
}

// Replace returns a new top-level map where monthKey holds weeks. Any prior
// entry under the key is dropped, not merged. m is not modified.
func Replace(m core.Month, monthKey string, weeks core.Weeks) core.Month {
	out := make(core.Month, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[monthKey] = weeks
	return out
}

// Store is the session's month cache. The zero value is empty and ready to use.
type Store struct {
	mu    sync.RWMutex
	month core.Month
}

// Snapshot returns the current month. Callers must treat it as read-only;
// writers always install a new map.
func (s *Store) Snapshot() core.Month {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.month
}

func (s *Store) Week(t time.Time) (core.Week, bool) {
	return GetWeek(s.Snapshot(), t)
}

func (s *Store) Day(t time.Time) (*core.Day, bool) {
	return GetDay(s.Snapshot(), t)
}

// ReplaceMonth installs weeks under monthKey.
func (s *Store) ReplaceMonth(monthKey string, weeks core.Weeks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.month = Replace(s.month, monthKey, weeks)
}

// ReplaceAll installs every month key of payload, each replacing its
// previous entry.
func (s *Store) ReplaceAll(payload core.Month) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.month
	for key, weeks := range payload {
		next = Replace(next, key, weeks)
	}
	if next == nil {
		next = core.Month{}
	}
	s.month = next
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.month = nil
}

// Assemble builds the payload of year/month from stored days: every ISO week
// touching the month is present, days outside those weeks are ignored.
func Assemble(year int, month time.Month, days []*core.Day) core.Month {
	weeks := make(core.Weeks)
	for _, key := range calendar.MonthWeekKeys(year, month) {
		weeks[key] = core.Week{}
	}
	for _, d := range days {
		if d == nil || d.Date.IsZero() {
			continue
		}
		key := calendar.WeekKey(d.Date.Time)
		w, ok := weeks[key]
		if !ok {
			continue
		}
		w[calendar.WeekdayIndex(d.Date.Time)] = d
		weeks[key] = w
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return core.Month{calendar.MonthKey(first): weeks}
}
