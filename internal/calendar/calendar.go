// Package calendar maps calendar dates to the canonical keys used to address
// months, weeks and days of tracker data, and back.
//
// Keys are the persisted contract between client and server:
//
//	month  "MM-YYYY"
//	week   "WW-YYYY"        ISO-8601 week number and ISO week-year
//	day    "DD.MM.YYYY"
//	hour   "DD.MM.YYYY.HH"
//
// All functions are pure and operate in the location of the given time.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Format names a key layout accepted by ParseKey.
type Format string

const (
	MonthFormat Format = "MM-YYYY"
	WeekFormat  Format = "WW-YYYY"
	DayFormat   Format = "DD.MM.YYYY"
	HourFormat  Format = "DD.MM.YYYY.HH"
)

// ErrInvalidFormat is returned when a string does not match the expected key
// pattern or names a date that does not exist.
var ErrInvalidFormat = errors.New("invalid format")

var patterns = map[Format]*regexp.Regexp{
	MonthFormat: regexp.MustCompile(`^(\d{1,2})-(\d{4})$`),
	WeekFormat:  regexp.MustCompile(`^(\d{1,2})-(\d{4})$`),
	DayFormat:   regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`),
	HourFormat:  regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})\.(\d{1,2})$`),
}

// Keys bundles every navigation key derived from one date.
type Keys struct {
	Month   string
	Week    string
	Day     string
	Weekday int
}

// WeekdayIndex returns 0 for Monday through 6 for Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MonthKey returns the "MM-YYYY" key of t.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%02d-%04d", int(t.Month()), t.Year())
}

// WeekKey returns the "WW-YYYY" key of the ISO week containing t. The year is
// the ISO week-year, so 30.12.2024 belongs to "01-2025".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%02d-%04d", week, year)
}

// DayKey returns the "DD.MM.YYYY" key of t.
func DayKey(t time.Time) string {
	return fmt.Sprintf("%02d.%02d.%04d", t.Day(), int(t.Month()), t.Year())
}

// HourKey returns the "DD.MM.YYYY.HH" key of t.
func HourKey(t time.Time) string {
	return fmt.Sprintf("%s.%02d", DayKey(t), t.Hour())
}

// KeysOf derives all navigation keys of t.
func KeysOf(t time.Time) Keys {
	return Keys{
		Month:   MonthKey(t),
		Week:    WeekKey(t),
		Day:     DayKey(t),
		Weekday: WeekdayIndex(t),
	}
}

// ParseKey is the inverse of the key functions. Month keys resolve to the
// first day of the month, week keys to the Monday of the ISO week, day keys to
// midnight and hour keys to the start of the hour, all in UTC. Use
// ParseKeyIn to choose another location.
func ParseKey(key string, format Format) (time.Time, error) {
	return ParseKeyIn(key, format, time.UTC)
}

// ParseKeyIn is ParseKey with an explicit location.
func ParseKeyIn(key string, format Format, loc *time.Location) (time.Time, error) {
	re, ok := patterns[format]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, format)
	}
	m := re.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q is not %s", ErrInvalidFormat, key, format)
	}
	n := make([]int, len(m)-1)
	for i, s := range m[1:] {
		v, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q is not %s", ErrInvalidFormat, key, format)
		}
		n[i] = v
	}

	switch format {
	case MonthFormat:
		month, year := n[0], n[1]
		if month < 1 || month > 12 {
			return time.Time{}, fmt.Errorf("%w: month %d out of range in %q", ErrInvalidFormat, month, key)
		}
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc), nil
	case WeekFormat:
		week, year := n[0], n[1]
		if week < 1 || week > ISOWeeksInYear(year) {
			return time.Time{}, fmt.Errorf("%w: week %d does not exist in %d", ErrInvalidFormat, week, year)
		}
		return isoWeekStart(year, week, loc), nil
	case DayFormat:
		return dateOf(key, n[2], n[1], n[0], 0, loc)
	default:
		if n[3] > 23 {
			return time.Time{}, fmt.Errorf("%w: hour %d out of range in %q", ErrInvalidFormat, n[3], key)
		}
		return dateOf(key, n[2], n[1], n[0], n[3], loc)
	}
}

// MustParseKey panics when key is not valid. Intended for constants and tests.
func MustParseKey(key string, format Format) time.Time {
	t, err := ParseKey(key, format)
	if err != nil {
		panic(err)
	}
	return t
}

func dateOf(key string, year, month, day, hour int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > DaysInMonth(year, time.Month(month)) {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidFormat, key)
	}
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, loc), nil
}

// isoWeekStart returns the Monday of ISO week `week` of ISO week-year `year`.
// Week 1 is the week containing January 4th.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	monday := jan4.AddDate(0, 0, -WeekdayIndex(jan4))
	return monday.AddDate(0, 0, (week-1)*7)
}

// ISOWeeksInYear returns 52 or 53.
func ISOWeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// DaysInMonth returns the calendar length of the month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonth reports whether two times fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthSpan returns the Monday of the ISO week holding the first day of the
// month and the Sunday of the ISO week holding its last day.
func MonthSpan(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := time.Date(year, month, DaysInMonth(year, month), 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -WeekdayIndex(first))
	end := last.AddDate(0, 0, 6-WeekdayIndex(last))
	return start, end
}

// MonthWeekKeys lists, in calendar order, the keys of every ISO week that
// contains at least one day of the month.
func MonthWeekKeys(year int, month time.Month) []string {
	start, end := MonthSpan(year, month, time.UTC)
	var keys []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
		keys = append(keys, WeekKey(d))
	}
	return keys
}
