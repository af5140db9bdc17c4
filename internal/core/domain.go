package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"watertrack/internal/calendar"
)

const (
	HoursPerDay   = 24
	DaysPerWeek   = 7
	MinAmount     = 1
	MaxAmount     = 5000
	MinGoal       = 100
	MaxGoal       = 20000
	MaxTypeLength = 40

	// DefaultGoal is used when neither the request nor the controls carry one.
	DefaultGoal = 2000
)

type (
	// Date is a calendar date addressed as "DD.MM.YYYY" on the wire.
	Date struct {
		time.Time
	}

	// Drink is one recorded intake. The day is implied by the enclosing Day.
	Drink struct {
		ID     string `json:"id,omitempty"`
		Amount int    `json:"amount"`
		Type   string `json:"type"`
		Hour   int    `json:"hour"`
	}

	// HourBucket holds the drinks of one hour in insertion order.
	HourBucket []Drink

	// Day is one tracked day. Activity always has 24 buckets, index = local hour.
	Day struct {
		Date     Date                    `json:"date"`
		Goal     int                     `json:"goal"`
		Activity [HoursPerDay]HourBucket `json:"activity"`
	}

	// Week is indexed Monday (0) to Sunday (6). A nil slot is a day that was
	// never initialized.
	Week [DaysPerWeek]*Day

	// Weeks maps "WW-YYYY" keys to weeks.
	Weeks map[string]Week

	// Month maps "MM-YYYY" keys to the weeks touching that month. Weeks may
	// carry days of the neighbouring month.
	Month map[string]Weeks

	// Controls are the last used defaults of the intake form.
	Controls struct {
		Amount *int    `json:"amount"`
		Type   *string `json:"type"`
		Goal   *int    `json:"goal"`
	}
)

// NewDate creates a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's location. Dates are
// always held at midnight UTC so they compare by day.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

// ParseDate parses a "DD.MM.YYYY" key.
func ParseDate(s string) (Date, error) {
	t, err := calendar.ParseKey(strings.TrimSpace(s), calendar.DayFormat)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String returns the "DD.MM.YYYY" key.
func (d Date) String() string {
	return calendar.DayKey(d.Time)
}

// MonthKey returns the month key derived from the date itself.
func (d Date) MonthKey() string {
	return calendar.MonthKey(d.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON accepts null, a number (legacy payloads stored 0 for an empty
// hour) or an array of drinks. Any other token is an error.
func (b *HourBucket) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("hour bucket: empty value")
	}
	switch c := data[0]; {
	case c == 'n' && bytes.Equal(data, []byte("null")):
		*b = nil
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("hour bucket: %w", err)
		}
		*b = nil
		return nil
	case c != '[':
		return fmt.Errorf("hour bucket: want null, a number or an array, got %.20s", data)
	}
	var drinks []Drink
	if err := json.Unmarshal(data, &drinks); err != nil {
		return fmt.Errorf("hour bucket: %w", err)
	}
	if len(drinks) == 0 {
		*b = nil
		return nil
	}
	*b = drinks
	return nil
}

// UnmarshalJSON decodes a day and sets the hour of every drink from the
// bucket holding it.
func (d *Day) UnmarshalJSON(data []byte) error {
	type plain Day
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	for h := range p.Activity {
		for i := range p.Activity[h] {
			p.Activity[h][i].Hour = h
		}
	}
	*d = Day(p)
	return nil
}

// NewDay returns an initialized day with empty activity.
func NewDay(date Date, goal int) *Day {
	return &Day{Date: date, Goal: goal}
}

// Clone returns a deep copy of the day.
func (d *Day) Clone() *Day {
	if d == nil {
		return nil
	}
	c := &Day{Date: d.Date, Goal: d.Goal}
	for h, bucket := range d.Activity {
		if len(bucket) > 0 {
			c.Activity[h] = append(HourBucket(nil), bucket...)
		}
	}
	return c
}

// Drinks returns every drink of the day in hour order.
func (d *Day) Drinks() []Drink {
	if d == nil {
		return nil
	}
	var out []Drink
	for _, bucket := range d.Activity {
		out = append(out, bucket...)
	}
	return out
}

// LastDrinkHour returns the hour of the most recently added drink, scanning
// from the latest hour backwards.
func (d *Day) LastDrinkHour() (int, bool) {
	if d == nil {
		return 0, false
	}
	for h := HoursPerDay - 1; h >= 0; h-- {
		if len(d.Activity[h]) > 0 {
			return h, true
		}
	}
	return 0, false
}

// IntPtr and StringPtr help building Controls.
func IntPtr(v int) *int          { return &v }
func StringPtr(v string) *string { return &v }

// ErrValidationFailed is matched by every validation error.
var ErrValidationFailed = errors.New("validation failed")

var (
	ErrInvalidAmount = &ValidationError{Field: "amount", Reason: fmt.Sprintf("must be between %d and %d", MinAmount, MaxAmount)}
	ErrInvalidGoal   = &ValidationError{Field: "goal", Reason: fmt.Sprintf("must be between %d and %d", MinGoal, MaxGoal)}
	ErrInvalidType   = &ValidationError{Field: "type", Reason: fmt.Sprintf("must be at most %d characters", MaxTypeLength)}
	ErrInvalidHour   = &ValidationError{Field: "hour", Reason: "must be between 0 and 23"}
	ErrDailyLimit    = &ValidationError{Field: "amount", Reason: fmt.Sprintf("daily total cannot exceed %d", MaxGoal)}
	ErrEmptyDate     = &ValidationError{Field: "date", Reason: "cannot be empty"}
)

// ValidationError describes an input rejected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidateAmount checks a single drink or control amount.
func ValidateAmount(amount int) error {
	if amount < MinAmount || amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateGoal checks a daily goal.
func ValidateGoal(goal int) error {
	if goal < MinGoal || goal > MaxGoal {
		return ErrInvalidGoal
	}
	return nil
}

// ValidateType checks a liquid type label.
func ValidateType(t string) error {
	if utf8.RuneCountInString(t) > MaxTypeLength {
		return ErrInvalidType
	}
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrEmptyDate
	}
	return nil
}

func (dr Drink) Validate() error {
	if err := ValidateAmount(dr.Amount); err != nil {
		return err
	}
	if err := ValidateType(dr.Type); err != nil {
		return err
	}
	if dr.Hour < 0 || dr.Hour >= HoursPerDay {
		return ErrInvalidHour
	}
	return nil
}

// Validate checks the fields that are set. Unset fields are left alone.
func (c Controls) Validate() error {
	var errs []error
	if c.Amount != nil {
		if err := ValidateAmount(*c.Amount); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Goal != nil {
		if err := ValidateGoal(*c.Goal); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Type != nil {
		if err := ValidateType(*c.Type); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Merge overlays the set fields of other onto c.
func (c Controls) Merge(other Controls) Controls {
	if other.Amount != nil {
		c.Amount = IntPtr(*other.Amount)
	}
	if other.Type != nil {
		c.Type = StringPtr(*other.Type)
	}
	if other.Goal != nil {
		c.Goal = IntPtr(*other.Goal)
	}
	return c
}

// GoalOr returns the control goal or def when unset.
func (c Controls) GoalOr(def int) int {
	if c.Goal != nil {
		return *c.Goal
	}
	return def
}
