package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/ports"
	"watertrack/internal/store"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// dayLayout is the sortable column format of days.day and drinks.day.
const dayLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "schema_version", version)

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func dayCol(d core.Date) string {
	return d.Format(dayLayout)
}

// withTx runs fn in a transaction, committing when it returns nil.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// loadDays reads the days of userID between from and to with their drinks.
func loadDays(ctx context.Context, q *Queries, userID string, from, to core.Date) ([]*core.Day, error) {
	arg := RangeParams{UserID: userID, From: dayCol(from), To: dayCol(to)}
	rows, err := q.ListDaysInRange(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	drinks, err := q.ListDrinksInRange(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list drinks: %w", err)
	}

	byDay := make(map[string]*core.Day, len(rows))
	days := make([]*core.Day, 0, len(rows))
	for _, row := range rows {
		t, err := time.Parse(dayLayout, row.Day)
		if err != nil {
			return nil, fmt.Errorf("parse stored day %q: %w", row.Day, err)
		}
		d := core.NewDay(core.DateOf(t), int(row.Goal))
		byDay[row.Day] = d
		days = append(days, d)
	}
	for _, dr := range drinks {
		d, ok := byDay[dr.Day]
		if !ok {
			continue
		}
		d.Activity[dr.Hour] = append(d.Activity[dr.Hour], core.Drink{
			ID:     dr.ID,
			Amount: int(dr.Amount),
			Type:   dr.Type,
			Hour:   int(dr.Hour),
		})
	}
	return days, nil
}

func loadDay(ctx context.Context, q *Queries, userID string, date core.Date) (*core.Day, error) {
	days, err := loadDays(ctx, q, userID, date, date)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	return days[0], nil
}

func (r *SQLiteRepository) markDirty(ctx context.Context, q *Queries, userID string, date core.Date) error {
	err := q.MarkMonthDirty(ctx, MarkMonthDirtyParams{
		UserID:   userID,
		MonthKey: date.MonthKey(),
		DirtyAt:  r.now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("mark month dirty: %w", err)
	}
	return nil
}

// requireDay returns ports.ErrNotFound when the day was never initialized.
func requireDay(ctx context.Context, q *Queries, userID string, date core.Date) error {
	_, err := q.GetDay(ctx, GetDayParams{UserID: userID, Day: dayCol(date)})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("day %s: %w", date, ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get day: %w", err)
	}
	return nil
}

// FetchMonth implements ports.MonthReader
func (r *SQLiteRepository) FetchMonth(ctx context.Context, userID string, year int, month time.Month) (core.Month, error) {
	start, end := calendar.MonthSpan(year, month, time.UTC)
	days, err := loadDays(ctx, r.queries, userID, core.DateOf(start), core.DateOf(end))
	if err != nil {
		return nil, fmt.Errorf("fetch month %d-%02d: %w", year, month, err)
	}
	return store.Assemble(year, month, days), nil
}

// GetDay implements ports.DayReader
func (r *SQLiteRepository) GetDay(ctx context.Context, userID string, date core.Date) (*core.Day, error) {
	return loadDay(ctx, r.queries, userID, date)
}

// GetWeek implements ports.DayReader
func (r *SQLiteRepository) GetWeek(ctx context.Context, userID string, date core.Date) (core.Week, error) {
	monday := core.DateOf(date.AddDate(0, 0, -calendar.WeekdayIndex(date.Time)))
	sunday := core.DateOf(monday.AddDate(0, 0, 6))
	var w core.Week
	days, err := loadDays(ctx, r.queries, userID, monday, sunday)
	if err != nil {
		return w, fmt.Errorf("get week: %w", err)
	}
	for _, d := range days {
		w[calendar.WeekdayIndex(d.Date.Time)] = d
	}
	return w, nil
}

// EnsureDay implements ports.DayWriter
func (r *SQLiteRepository) EnsureDay(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error) {
	var day *core.Day
	err := r.withTx(ctx, func(q *Queries) error {
		n, err := q.InsertDayIfMissing(ctx, InsertDayIfMissingParams{UserID: userID, Day: dayCol(date), Goal: int64(goal)})
		if err != nil {
			return fmt.Errorf("insert day: %w", err)
		}
		if n > 0 {
			if err := r.markDirty(ctx, q, userID, date); err != nil {
				return err
			}
			slog.DebugContext(ctx, "Day initialized", "user_id", userID, "date", date.String(), "goal", goal)
		}
		day, err = loadDay(ctx, q, userID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

func (r *SQLiteRepository) AddDrink(ctx context.Context, userID string, date core.Date, drink core.Drink) (*core.Day, error) {
	if drink.ID == "" {
		drink.ID = uuid.NewString()
	}
	return r.mutate(ctx, userID, date, func(q *Queries) error {
		err := q.InsertDrink(ctx, InsertDrinkParams{
			ID:     drink.ID,
			UserID: userID,
			Day:    dayCol(date),
			Hour:   int64(drink.Hour),
			Amount: int64(drink.Amount),
			Type:   drink.Type,
		})
		if err != nil {
			return fmt.Errorf("insert drink: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) RemoveLastDrink(ctx context.Context, userID string, date core.Date) (*core.Day, error) {
	return r.mutate(ctx, userID, date, func(q *Queries) error {
		last, err := q.GetLastDrink(ctx, GetDayParams{UserID: userID, Day: dayCol(date)})
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get last drink: %w", err)
		}
		if err := q.DeleteDrink(ctx, last.Seq); err != nil {
			return fmt.Errorf("delete drink: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) SetDailyGoal(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error) {
	return r.mutate(ctx, userID, date, func(q *Queries) error {
		if _, err := q.UpdateDayGoal(ctx, UpdateDayGoalParams{Goal: int64(goal), UserID: userID, Day: dayCol(date)}); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
		return nil
	})
}

// mutate runs fn against an existing day, marks its month dirty and returns
// the day as stored afterwards.
func (r *SQLiteRepository) mutate(ctx context.Context, userID string, date core.Date, fn func(q *Queries) error) (*core.Day, error) {
	var day *core.Day
	err := r.withTx(ctx, func(q *Queries) error {
		if err := requireDay(ctx, q, userID, date); err != nil {
			return err
		}
		if err := fn(q); err != nil {
			return err
		}
		if err := r.markDirty(ctx, q, userID, date); err != nil {
			return err
		}
		var err error
		day, err = loadDay(ctx, q, userID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

// GetControls implements ports.ControlsStore
func (r *SQLiteRepository) GetControls(ctx context.Context, userID string) (core.Controls, error) {
	row, err := r.queries.GetControls(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Controls{}, nil
	}
	if err != nil {
		return core.Controls{}, fmt.Errorf("get controls: %w", err)
	}
	return controlsFromRow(row), nil
}

func (r *SQLiteRepository) SetControls(ctx context.Context, userID string, c core.Controls) (core.Controls, error) {
	arg := Control{UserID: userID}
	if c.Amount != nil {
		arg.Amount = sql.NullInt64{Int64: int64(*c.Amount), Valid: true}
	}
	if c.Type != nil {
		arg.Type = sql.NullString{String: *c.Type, Valid: true}
	}
	if c.Goal != nil {
		arg.Goal = sql.NullInt64{Int64: int64(*c.Goal), Valid: true}
	}

	var out core.Controls
	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.UpsertControls(ctx, arg); err != nil {
			return fmt.Errorf("upsert controls: %w", err)
		}
		row, err := q.GetControls(ctx, userID)
		if err != nil {
			return fmt.Errorf("get controls: %w", err)
		}
		out = controlsFromRow(row)
		return nil
	})
	return out, err
}

func controlsFromRow(row Control) core.Controls {
	var c core.Controls
	if row.Amount.Valid {
		c.Amount = core.IntPtr(int(row.Amount.Int64))
	}
	if row.Type.Valid {
		c.Type = core.StringPtr(row.Type.String)
	}
	if row.Goal.Valid {
		c.Goal = core.IntPtr(int(row.Goal.Int64))
	}
	return c
}

// SaveSummary implements ports.SummaryStore
func (r *SQLiteRepository) SaveSummary(ctx context.Context, s core.MonthSummary) error {
	err := r.queries.UpsertSummary(ctx, MonthSummary{
		UserID:             s.UserID,
		MonthKey:           s.MonthKey,
		TotalAmount:        int64(s.TotalAmount),
		MaxAmount:          int64(s.MaxAmount),
		AverageAmount:      int64(s.AverageAmount),
		DaysInMonth:        int64(s.DaysInMonth),
		DaysInMonthLeft:    int64(s.DaysInMonthLeft),
		GoalReachedCounter: int64(s.GoalReachedCounter),
		Drinks:             int64(s.Drinks),
		Types:              int64(s.Types),
		ComputedAt:         sql.NullInt64{Int64: s.UpdatedAt.UnixNano(), Valid: true},
	})
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	slog.InfoContext(ctx, "Month summary saved to SQLite",
		"user_id", s.UserID,
		"month_key", s.MonthKey,
		"total_amount", s.TotalAmount)
	return nil
}

func (r *SQLiteRepository) GetSummary(ctx context.Context, userID, monthKey string) (core.MonthSummary, error) {
	row, err := r.queries.GetSummary(ctx, GetSummaryParams{UserID: userID, MonthKey: monthKey})
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthSummary{}, fmt.Errorf("summary %s: %w", monthKey, ports.ErrNotFound)
	}
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("get summary: %w", err)
	}
	return core.MonthSummary{
		UserID:             row.UserID,
		MonthKey:           row.MonthKey,
		TotalAmount:        int(row.TotalAmount),
		MaxAmount:          int(row.MaxAmount),
		AverageAmount:      int(row.AverageAmount),
		DaysInMonth:        int(row.DaysInMonth),
		DaysInMonthLeft:    int(row.DaysInMonthLeft),
		GoalReachedCounter: int(row.GoalReachedCounter),
		Drinks:             int(row.Drinks),
		Types:              int(row.Types),
		UpdatedAt:          time.Unix(0, row.ComputedAt.Int64).UTC(),
	}, nil
}

// DirtyMonths returns the months whose summary is out of date, oldest change
// first. A limit of zero or less returns all of them.
func (r *SQLiteRepository) DirtyMonths(ctx context.Context, limit int) ([]ports.MonthRef, error) {
	l := int64(limit)
	if l <= 0 {
		l = -1
	}
	rows, err := r.queries.ListDirtyMonths(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("list dirty months: %w", err)
	}
	refs := make([]ports.MonthRef, len(rows))
	for i, row := range rows {
		refs[i] = ports.MonthRef{UserID: row.UserID, MonthKey: row.MonthKey}
	}
	return refs, nil
}
