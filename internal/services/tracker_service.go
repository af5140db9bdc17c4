package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/log"
	"watertrack/internal/ports"
	"watertrack/internal/stats"
)

// Publisher announces mutated days.
type Publisher interface {
	PublishDayChanged(ctx context.Context, userID string, date core.Date) error
}

// ControlValues is the combined form update: controls plus the goal of one
// day.
type ControlValues struct {
	Amount int       `json:"amount"`
	Goal   int       `json:"goal"`
	Type   string    `json:"type"`
	Date   core.Date `json:"date"`
}

// TrackerService applies the business rules on top of a repository and
// publishes a DayChanged message after every successful mutation.
type TrackerService struct {
	repo      ports.Repository
	publisher Publisher
	now       func() time.Time
}

// NewTrackerService creates the service. publisher may be nil.
func NewTrackerService(repo ports.Repository, publisher Publisher) *TrackerService {
	return &TrackerService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// Month returns the month payload of year/month.
func (s *TrackerService) Month(ctx context.Context, userID string, year int, month time.Month) (core.Month, error) {
	if month < time.January || month > time.December {
		return nil, &core.ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	if year < 1 || year > 9999 {
		return nil, &core.ValidationError{Field: "year", Reason: "must be between 1 and 9999"}
	}
	m, err := s.repo.FetchMonth(ctx, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("fetch month: %w", err)
	}
	return m, nil
}

func (s *TrackerService) Controls(ctx context.Context, userID string) (core.Controls, error) {
	c, err := s.repo.GetControls(ctx, userID)
	if err != nil {
		return core.Controls{}, fmt.Errorf("get controls: %w", err)
	}
	return c, nil
}

// Today returns the day at date, today when date is zero. A missing day is
// initialized with the goal of the controls and created is true.
func (s *TrackerService) Today(ctx context.Context, userID string, date core.Date) (day *core.Day, created bool, err error) {
	if date.IsZero() {
		date = core.DateOf(s.now())
	}
	d, err := s.repo.GetDay(ctx, userID, date)
	if err != nil {
		return nil, false, fmt.Errorf("get day: %w", err)
	}
	if d != nil {
		return d, false, nil
	}
	d, err = s.ensureDay(ctx, userID, date)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func (s *TrackerService) Week(ctx context.Context, userID string, date core.Date) (core.Week, error) {
	if err := date.Validate(); err != nil {
		return core.Week{}, err
	}
	w, err := s.repo.GetWeek(ctx, userID, date)
	if err != nil {
		return core.Week{}, fmt.Errorf("get week: %w", err)
	}
	return w, nil
}

// AddDrink records amount ml of liquidType at the hour named by hourKey
// ("DD.MM.YYYY.HH"). The day is initialized when missing. The daily total may
// not exceed core.MaxGoal.
func (s *TrackerService) AddDrink(ctx context.Context, userID, hourKey string, amount int, liquidType string) (*core.Day, error) {
	t, err := calendar.ParseKey(hourKey, calendar.HourFormat)
	if err != nil {
		return nil, &core.ValidationError{Field: "date", Reason: err.Error()}
	}
	date := core.DateOf(t)
	drink := core.Drink{
		ID:     uuid.NewString(),
		Amount: amount,
		Type:   liquidType,
		Hour:   t.Hour(),
	}
	if err := drink.Validate(); err != nil {
		return nil, err
	}

	day, err := s.repo.GetDay(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get day: %w", err)
	}
	if day == nil {
		if day, err = s.ensureDay(ctx, userID, date); err != nil {
			return nil, err
		}
	}
	if stats.DailyAmountSum(day)+amount > core.MaxGoal {
		return nil, core.ErrDailyLimit
	}

	day, err = s.repo.AddDrink(ctx, userID, date, drink)
	if err != nil {
		return nil, fmt.Errorf("add drink: %w", err)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogDrinkAdded(ctx, userID, date.String(), amount, liquidType)
	s.publish(ctx, userID, date)
	return day, nil
}

// StepBack removes the latest drink of the day.
func (s *TrackerService) StepBack(ctx context.Context, userID string, date core.Date) (*core.Day, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	d, err := s.repo.RemoveLastDrink(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("remove last drink: %w", err)
	}
	s.publish(ctx, userID, date)
	return d, nil
}

// SetDailyGoal changes the goal of an initialized day.
func (s *TrackerService) SetDailyGoal(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error) {
	if err := errors.Join(date.Validate(), core.ValidateGoal(goal)); err != nil {
		return nil, err
	}
	d, err := s.repo.SetDailyGoal(ctx, userID, date, goal)
	if err != nil {
		return nil, fmt.Errorf("set daily goal: %w", err)
	}
	s.publish(ctx, userID, date)
	return d, nil
}

// SetDay initializes the day with goal, or moves an existing day to goal.
func (s *TrackerService) SetDay(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error) {
	if err := errors.Join(date.Validate(), core.ValidateGoal(goal)); err != nil {
		return nil, err
	}
	d, err := s.repo.EnsureDay(ctx, userID, date, goal)
	if err != nil {
		return nil, fmt.Errorf("ensure day: %w", err)
	}
	if d.Goal != goal {
		if d, err = s.repo.SetDailyGoal(ctx, userID, date, goal); err != nil {
			return nil, fmt.Errorf("set daily goal: %w", err)
		}
	}
	s.publish(ctx, userID, date)
	return d, nil
}

// SetControlValues stores amount and type as controls and sets the goal of
// the day at v.Date. The controls goal is only taken from v when none is
// stored yet.
func (s *TrackerService) SetControlValues(ctx context.Context, userID string, v ControlValues) (ControlValues, error) {
	if err := errors.Join(
		v.Date.Validate(),
		core.ValidateAmount(v.Amount),
		core.ValidateGoal(v.Goal),
		core.ValidateType(v.Type),
	); err != nil {
		return ControlValues{}, err
	}

	prev, err := s.repo.GetControls(ctx, userID)
	if err != nil {
		return ControlValues{}, fmt.Errorf("get controls: %w", err)
	}
	day, err := s.repo.SetDailyGoal(ctx, userID, v.Date, v.Goal)
	if err != nil {
		return ControlValues{}, fmt.Errorf("set daily goal: %w", err)
	}
	c, err := s.repo.SetControls(ctx, userID, core.Controls{
		Amount: core.IntPtr(v.Amount),
		Type:   core.StringPtr(v.Type),
		Goal:   core.IntPtr(prev.GoalOr(v.Goal)),
	})
	if err != nil {
		return ControlValues{}, fmt.Errorf("set controls: %w", err)
	}
	s.publish(ctx, userID, v.Date)

	out := ControlValues{Goal: day.Goal, Date: v.Date}
	if c.Amount != nil {
		out.Amount = *c.Amount
	}
	if c.Type != nil {
		out.Type = *c.Type
	}
	return out, nil
}

// SetControls overlays the set fields of c onto the stored controls.
func (s *TrackerService) SetControls(ctx context.Context, userID string, c core.Controls) (core.Controls, error) {
	if err := c.Validate(); err != nil {
		return core.Controls{}, err
	}
	out, err := s.repo.SetControls(ctx, userID, c)
	if err != nil {
		return core.Controls{}, fmt.Errorf("set controls: %w", err)
	}
	return out, nil
}

// SetAmountAndType requires both an amount and a type.
func (s *TrackerService) SetAmountAndType(ctx context.Context, userID string, amount int, liquidType string) (core.Controls, error) {
	var errs []error
	if amount == 0 {
		errs = append(errs, &core.ValidationError{Field: "amount", Reason: "is required"})
	} else if err := core.ValidateAmount(amount); err != nil {
		errs = append(errs, err)
	}
	if liquidType == "" {
		errs = append(errs, &core.ValidationError{Field: "type", Reason: "is required"})
	} else if err := core.ValidateType(liquidType); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return core.Controls{}, err
	}
	return s.SetControls(ctx, userID, core.Controls{
		Amount: core.IntPtr(amount),
		Type:   core.StringPtr(liquidType),
	})
}

// Summary returns the stored summary of year/month.
func (s *TrackerService) Summary(ctx context.Context, userID string, year int, month time.Month) (core.MonthSummary, error) {
	if month < time.January || month > time.December {
		return core.MonthSummary{}, &core.ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	key := calendar.MonthKey(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	sum, err := s.repo.GetSummary(ctx, userID, key)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("get summary %s: %w", key, err)
	}
	return sum, nil
}

func (s *TrackerService) ensureDay(ctx context.Context, userID string, date core.Date) (*core.Day, error) {
	c, err := s.repo.GetControls(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get controls: %w", err)
	}
	d, err := s.repo.EnsureDay(ctx, userID, date, c.GoalOr(core.DefaultGoal))
	if err != nil {
		return nil, fmt.Errorf("ensure day: %w", err)
	}
	s.publish(ctx, userID, date)
	return d, nil
}

// publish never fails the request; the dirty mark in the repository lets the
// periodic processor catch up on lost messages.
func (s *TrackerService) publish(ctx context.Context, userID string, date core.Date) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping day changed message")
		return
	}
	if err := s.publisher.PublishDayChanged(ctx, userID, date); err != nil {
		slog.ErrorContext(ctx, "Failed to publish day changed message",
			log.FieldUserID, userID,
			log.FieldDate, date.String(),
			log.FieldError, err)
	}
}

// Ping reports whether the repository is reachable when it supports it.
func (s *TrackerService) Ping(ctx context.Context) error {
	if p, ok := s.repo.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the repository and the publisher when it can be closed.
func (s *TrackerService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("repository: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close tracker service: %w", errors.Join(errs...))
	}
	return nil
}
