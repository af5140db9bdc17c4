package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/log"
	"watertrack/internal/ports"
	"watertrack/internal/stats"
)

// BuildSummary rolls up monthKey of m as of now.
func BuildSummary(userID, monthKey string, m core.Month, now time.Time) core.MonthSummary {
	st := stats.MonthStats(m, monthKey, now)
	ext := stats.ExtendedStats(m, monthKey, now)

	total := 0
	for _, d := range stats.MonthlyDrinks(m, monthKey) {
		total += d.Amount
	}

	return core.MonthSummary{
		UserID:             userID,
		MonthKey:           monthKey,
		TotalAmount:        total,
		MaxAmount:          st.MaxAmount,
		AverageAmount:      st.AverageAmount,
		DaysInMonth:        st.DaysInMonth,
		DaysInMonthLeft:    st.DaysInMonthLeft,
		GoalReachedCounter: st.GoalReachedCounter,
		Drinks:             ext.Drinks,
		Types:              ext.Types,
		UpdatedAt:          now,
	}
}

// SummaryBuilder recomputes and persists month summaries.
type SummaryBuilder struct {
	repo     ports.Repository
	exporter ports.SummaryExporter
	now      func() time.Time
}

// NewSummaryBuilder creates a builder. exporter may be nil.
func NewSummaryBuilder(repo ports.Repository, exporter ports.SummaryExporter) *SummaryBuilder {
	return &SummaryBuilder{
		repo:     repo,
		exporter: exporter,
		now:      time.Now,
	}
}

// Rebuild reloads the month, exports its summary when an exporter is
// configured and stores it. The summary is stamped with the time taken before
// reading, so a change racing the rebuild keeps the month dirty.
func (b *SummaryBuilder) Rebuild(ctx context.Context, userID, monthKey string) (core.MonthSummary, error) {
	first, err := calendar.ParseKey(monthKey, calendar.MonthFormat)
	if err != nil {
		return core.MonthSummary{}, err
	}

	now := b.now()
	m, err := b.repo.FetchMonth(ctx, userID, first.Year(), first.Month())
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("fetch month %s: %w", monthKey, err)
	}

	sum := BuildSummary(userID, monthKey, m, now)

	// Export first: saving clears the dirty mark, a failed export must not.
	if b.exporter != nil {
		if err := b.exporter.ExportSummary(ctx, sum); err != nil {
			return core.MonthSummary{}, fmt.Errorf("export summary %s: %w", monthKey, err)
		}
	}

	if err := b.repo.SaveSummary(ctx, sum); err != nil {
		return core.MonthSummary{}, fmt.Errorf("save summary %s: %w", monthKey, err)
	}

	slog.InfoContext(ctx, "Month summary rebuilt",
		log.FieldUserID, userID,
		log.FieldMonthKey, monthKey,
		"total_amount", sum.TotalAmount,
		"exported", b.exporter != nil)

	return sum, nil
}
