package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Day struct {
	UserID string
	Day    string
	Goal   int64
}

type Drink struct {
	Seq    int64
	ID     string
	UserID string
	Day    string
	Hour   int64
	Amount int64
	Type   string
}

type Control struct {
	UserID string
	Amount sql.NullInt64
	Type   sql.NullString
	Goal   sql.NullInt64
}

type MonthSummary struct {
	UserID             string
	MonthKey           string
	TotalAmount        int64
	MaxAmount          int64
	AverageAmount      int64
	DaysInMonth        int64
	DaysInMonthLeft    int64
	GoalReachedCounter int64
	Drinks             int64
	Types              int64
	ComputedAt         sql.NullInt64
}

const getDay = `-- name: GetDay :one
SELECT user_id, day, goal FROM days
WHERE user_id = ? AND day = ?
`

type GetDayParams struct {
	UserID string
	Day    string
}

func (q *Queries) GetDay(ctx context.Context, arg GetDayParams) (Day, error) {
	row := q.db.QueryRowContext(ctx, getDay, arg.UserID, arg.Day)
	var i Day
	err := row.Scan(&i.UserID, &i.Day, &i.Goal)
	return i, err
}

const insertDayIfMissing = `-- name: InsertDayIfMissing :execrows
INSERT INTO days (user_id, day, goal) VALUES (?, ?, ?)
ON CONFLICT (user_id, day) DO NOTHING
`

type InsertDayIfMissingParams struct {
	UserID string
	Day    string
	Goal   int64
}

func (q *Queries) InsertDayIfMissing(ctx context.Context, arg InsertDayIfMissingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertDayIfMissing, arg.UserID, arg.Day, arg.Goal)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateDayGoal = `-- name: UpdateDayGoal :execrows
UPDATE days SET goal = ?, updated_at = CURRENT_TIMESTAMP
WHERE user_id = ? AND day = ?
`

type UpdateDayGoalParams struct {
	Goal   int64
	UserID string
	Day    string
}

func (q *Queries) UpdateDayGoal(ctx context.Context, arg UpdateDayGoalParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDayGoal, arg.Goal, arg.UserID, arg.Day)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDaysInRange = `-- name: ListDaysInRange :many
SELECT user_id, day, goal FROM days
WHERE user_id = ? AND day BETWEEN ? AND ?
ORDER BY day
`

type RangeParams struct {
	UserID string
	From   string
	To     string
}

func (q *Queries) ListDaysInRange(ctx context.Context, arg RangeParams) ([]Day, error) {
	rows, err := q.db.QueryContext(ctx, listDaysInRange, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Day
	for rows.Next() {
		var i Day
		if err := rows.Scan(&i.UserID, &i.Day, &i.Goal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listDrinksInRange = `-- name: ListDrinksInRange :many
SELECT seq, id, user_id, day, hour, amount, type FROM drinks
WHERE user_id = ? AND day BETWEEN ? AND ?
ORDER BY day, hour, seq
`

func (q *Queries) ListDrinksInRange(ctx context.Context, arg RangeParams) ([]Drink, error) {
	rows, err := q.db.QueryContext(ctx, listDrinksInRange, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Drink
	for rows.Next() {
		var i Drink
		if err := rows.Scan(&i.Seq, &i.ID, &i.UserID, &i.Day, &i.Hour, &i.Amount, &i.Type); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertDrink = `-- name: InsertDrink :exec
INSERT INTO drinks (id, user_id, day, hour, amount, type) VALUES (?, ?, ?, ?, ?, ?)
`

type InsertDrinkParams struct {
	ID     string
	UserID string
	Day    string
	Hour   int64
	Amount int64
	Type   string
}

func (q *Queries) InsertDrink(ctx context.Context, arg InsertDrinkParams) error {
	_, err := q.db.ExecContext(ctx, insertDrink, arg.ID, arg.UserID, arg.Day, arg.Hour, arg.Amount, arg.Type)
	return err
}

const getLastDrink = `-- name: GetLastDrink :one
SELECT seq, id, user_id, day, hour, amount, type FROM drinks
WHERE user_id = ? AND day = ?
ORDER BY hour DESC, seq DESC
LIMIT 1
`

func (q *Queries) GetLastDrink(ctx context.Context, arg GetDayParams) (Drink, error) {
	row := q.db.QueryRowContext(ctx, getLastDrink, arg.UserID, arg.Day)
	var i Drink
	err := row.Scan(&i.Seq, &i.ID, &i.UserID, &i.Day, &i.Hour, &i.Amount, &i.Type)
	return i, err
}

const deleteDrink = `-- name: DeleteDrink :exec
DELETE FROM drinks WHERE seq = ?
`

func (q *Queries) DeleteDrink(ctx context.Context, seq int64) error {
	_, err := q.db.ExecContext(ctx, deleteDrink, seq)
	return err
}

const getControls = `-- name: GetControls :one
SELECT user_id, amount, type, goal FROM controls WHERE user_id = ?
`

func (q *Queries) GetControls(ctx context.Context, userID string) (Control, error) {
	row := q.db.QueryRowContext(ctx, getControls, userID)
	var i Control
	err := row.Scan(&i.UserID, &i.Amount, &i.Type, &i.Goal)
	return i, err
}

const upsertControls = `-- name: UpsertControls :exec
INSERT INTO controls (user_id, amount, type, goal) VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    amount = COALESCE(excluded.amount, controls.amount),
    type = COALESCE(excluded.type, controls.type),
    goal = COALESCE(excluded.goal, controls.goal),
    updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) UpsertControls(ctx context.Context, arg Control) error {
	_, err := q.db.ExecContext(ctx, upsertControls, arg.UserID, arg.Amount, arg.Type, arg.Goal)
	return err
}

const markMonthDirty = `-- name: MarkMonthDirty :exec
INSERT INTO month_summaries (user_id, month_key, dirty, dirty_at) VALUES (?, ?, 1, ?)
ON CONFLICT (user_id, month_key) DO UPDATE SET
    dirty = 1,
    dirty_at = excluded.dirty_at
`

type MarkMonthDirtyParams struct {
	UserID   string
	MonthKey string
	DirtyAt  int64
}

func (q *Queries) MarkMonthDirty(ctx context.Context, arg MarkMonthDirtyParams) error {
	_, err := q.db.ExecContext(ctx, markMonthDirty, arg.UserID, arg.MonthKey, arg.DirtyAt)
	return err
}

const upsertSummary = `-- name: UpsertSummary :exec
INSERT INTO month_summaries (
    user_id, month_key, total_amount, max_amount, average_amount, days_in_month,
    days_in_month_left, goal_reached_counter, drinks, types, dirty, computed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT (user_id, month_key) DO UPDATE SET
    total_amount = excluded.total_amount,
    max_amount = excluded.max_amount,
    average_amount = excluded.average_amount,
    days_in_month = excluded.days_in_month,
    days_in_month_left = excluded.days_in_month_left,
    goal_reached_counter = excluded.goal_reached_counter,
    drinks = excluded.drinks,
    types = excluded.types,
    computed_at = excluded.computed_at,
    dirty = CASE
        WHEN month_summaries.dirty_at IS NULL OR month_summaries.dirty_at <= excluded.computed_at THEN 0
        ELSE month_summaries.dirty
    END
`

func (q *Queries) UpsertSummary(ctx context.Context, arg MonthSummary) error {
	_, err := q.db.ExecContext(ctx, upsertSummary,
		arg.UserID,
		arg.MonthKey,
		arg.TotalAmount,
		arg.MaxAmount,
		arg.AverageAmount,
		arg.DaysInMonth,
		arg.DaysInMonthLeft,
		arg.GoalReachedCounter,
		arg.Drinks,
		arg.Types,
		arg.ComputedAt,
	)
	return err
}

const getSummary = `-- name: GetSummary :one
SELECT user_id, month_key, total_amount, max_amount, average_amount, days_in_month,
    days_in_month_left, goal_reached_counter, drinks, types, computed_at
FROM month_summaries
WHERE user_id = ? AND month_key = ? AND computed_at IS NOT NULL
`

type GetSummaryParams struct {
	UserID   string
	MonthKey string
}

func (q *Queries) GetSummary(ctx context.Context, arg GetSummaryParams) (MonthSummary, error) {
	row := q.db.QueryRowContext(ctx, getSummary, arg.UserID, arg.MonthKey)
	var i MonthSummary
	err := row.Scan(
		&i.UserID,
		&i.MonthKey,
		&i.TotalAmount,
		&i.MaxAmount,
		&i.AverageAmount,
		&i.DaysInMonth,
		&i.DaysInMonthLeft,
		&i.GoalReachedCounter,
		&i.Drinks,
		&i.Types,
		&i.ComputedAt,
	)
	return i, err
}

const listDirtyMonths = `-- name: ListDirtyMonths :many
SELECT user_id, month_key FROM month_summaries
WHERE dirty = 1
ORDER BY dirty_at, user_id, month_key
LIMIT ?
`

type ListDirtyMonthsRow struct {
	UserID   string
	MonthKey string
}

func (q *Queries) ListDirtyMonths(ctx context.Context, limit int64) ([]ListDirtyMonthsRow, error) {
	rows, err := q.db.QueryContext(ctx, listDirtyMonths, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListDirtyMonthsRow
	for rows.Next() {
		var i ListDirtyMonthsRow
		if err := rows.Scan(&i.UserID, &i.MonthKey); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
