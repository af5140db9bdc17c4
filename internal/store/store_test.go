package store

import (
	"sync"
	"testing"
	"time"

	"watertrack/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleMonth() core.Month {
	var w core.Week
	// 15.03.2024 is a Friday, index 4 of week 11.
	w[4] = core.NewDay(core.NewDate(2024, time.March, 15), 2000)
	return core.Month{"03-2024": core.Weeks{"11-2024": w}}
}

func TestGetDayMissingNeverPanics(t *testing.T) {
	months := []core.Month{
		nil,
		{},
		{"03-2024": nil},
		{"03-2024": core.Weeks{}},
		sampleMonth(),
	}
	dates := []time.Time{
		day(2024, 3, 14), // same week, empty slot
		day(2024, 3, 4),  // same month, absent week
		day(2024, 4, 15), // absent month
	}
	for i, m := range months {
		for _, d := range dates {
			if got, ok := GetDay(m, d); ok || got != nil {
				t.Errorf("month %d: GetDay(%s) = %v, %v; want nil, false", i, d.Format(time.DateOnly), got, ok)
			}
		}
	}
}

func TestGetDayHit(t *testing.T) {
	m := sampleMonth()
	d, ok := GetDay(m, day(2024, 3, 15))
	if !ok {
		t.Fatalf("expected hit")
	}
	if d.Date.String() != "15.03.2024" {
		t.Fatalf("got day %s", d.Date)
	}
	if _, ok := GetWeek(m, day(2024, 3, 11)); !ok {
		t.Fatalf("expected week hit for Monday of week 11")
	}
}

func TestReplaceDoesNotMerge(t *testing.T) {
	old := sampleMonth()
	var w core.Week
	w[0] = core.NewDay(core.NewDate(2024, time.March, 4), 1500)
	next := Replace(old, "03-2024", core.Weeks{"10-2024": w})

	if _, ok := GetDay(next, day(2024, 3, 15)); ok {
		t.Fatalf("stale week survived replace")
	}
	if _, ok := GetDay(next, day(2024, 3, 4)); !ok {
		t.Fatalf("new week missing after replace")
	}
	if _, ok := GetDay(old, day(2024, 3, 15)); !ok {
		t.Fatalf("Replace mutated its input")
	}
}

func TestStoreReplaceAllAndReset(t *testing.T) {
	var s Store
	if _, ok := s.Day(day(2024, 3, 15)); ok {
		t.Fatalf("zero store should be empty")
	}
	s.ReplaceAll(sampleMonth())
	if _, ok := s.Day(day(2024, 3, 15)); !ok {
		t.Fatalf("expected hit after ReplaceAll")
	}

	before := s.Snapshot()
	s.ReplaceMonth("04-2024", core.Weeks{})
	if _, ok := before["04-2024"]; ok {
		t.Fatalf("snapshot changed after ReplaceMonth")
	}
	if len(s.Snapshot()) != 2 {
		t.Fatalf("expected two month keys, got %d", len(s.Snapshot()))
	}

	s.Reset()
	if s.Snapshot() != nil {
		t.Fatalf("Reset left data behind")
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	var s Store
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ReplaceAll(sampleMonth())
		}()
		go func() {
			defer wg.Done()
			if d, ok := s.Day(day(2024, 3, 15)); ok && len(d.Activity) != core.HoursPerDay {
				t.Errorf("partial day observed")
			}
		}()
	}
	wg.Wait()
}

func TestAssemble(t *testing.T) {
	days := []*core.Day{
		core.NewDay(core.NewDate(2024, time.February, 26), 2000), // week 09, touches March
		core.NewDay(core.NewDate(2024, time.March, 31), 2500),
		core.NewDay(core.NewDate(2024, time.April, 5), 2000), // week 14, outside
		nil,
	}
	m := Assemble(2024, time.March, days)

	weeks, ok := m["03-2024"]
	if !ok || len(m) != 1 {
		t.Fatalf("Assemble keys = %v, want only 03-2024", m)
	}
	if len(weeks) != 5 {
		t.Fatalf("got %d weeks, want 5 (09-2024 to 13-2024)", len(weeks))
	}
	if d := weeks["09-2024"][0]; d == nil || d.Goal != 2000 {
		t.Errorf("monday of week 09 = %v, want the 26.02 day", d)
	}
	if d := weeks["13-2024"][6]; d == nil || d.Goal != 2500 {
		t.Errorf("sunday of week 13 = %v, want the 31.03 day", d)
	}
	if _, ok := weeks["14-2024"]; ok {
		t.Errorf("week 14-2024 should not be part of March")
	}
	if _, ok := GetDay(m, day(2024, 3, 12)); ok {
		t.Errorf("empty slot reported as present")
	}
}
