package ports

import (
	"context"
	"errors"
	"time"

	"watertrack/internal/core"
)

// ErrNotFound is returned by mutations addressing a day that was never
// initialized, and by summary lookups with no stored summary.
var ErrNotFound = errors.New("not found")

// MonthRef addresses one month of one account.
type MonthRef struct {
	UserID   string
	MonthKey string
}

// Ports for outbound adapters.
type (
	// MonthReader returns the month payload keyed by the month key of
	// year/month, holding every ISO week touching the month.
	MonthReader interface {
		FetchMonth(ctx context.Context, userID string, year int, month time.Month) (core.Month, error)
	}

	// DayReader returns nil without error when nothing is stored.
	DayReader interface {
		GetDay(ctx context.Context, userID string, date core.Date) (*core.Day, error)
		GetWeek(ctx context.Context, userID string, date core.Date) (core.Week, error)
	}

	// DayWriter mutates single days. Every mutation marks the month of the
	// day dirty for the summary worker.
	DayWriter interface {
		// EnsureDay initializes the day with goal unless it exists already.
		EnsureDay(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error)
		AddDrink(ctx context.Context, userID string, date core.Date, drink core.Drink) (*core.Day, error)
		// RemoveLastDrink drops the most recent drink of the latest hour
		// holding one. A day without drinks is returned unchanged.
		RemoveLastDrink(ctx context.Context, userID string, date core.Date) (*core.Day, error)
		SetDailyGoal(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error)
	}

	// ControlsStore keeps the last used form defaults. SetControls overlays
	// the set fields and returns the result.
	ControlsStore interface {
		GetControls(ctx context.Context, userID string) (core.Controls, error)
		SetControls(ctx context.Context, userID string, c core.Controls) (core.Controls, error)
	}

	SummaryStore interface {
		// SaveSummary stores s and clears the dirty mark unless the month
		// changed after s.UpdatedAt.
		SaveSummary(ctx context.Context, s core.MonthSummary) error
		GetSummary(ctx context.Context, userID, monthKey string) (core.MonthSummary, error)
		DirtyMonths(ctx context.Context, limit int) ([]MonthRef, error)
	}

	SummaryExporter interface {
		ExportSummary(ctx context.Context, s core.MonthSummary) error
	}

	// Repository is everything a backend provides.
	Repository interface {
		MonthReader
		DayReader
		DayWriter
		ControlsStore
		SummaryStore
		Close() error
	}
)
