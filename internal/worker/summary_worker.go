package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"watertrack/internal/amqp"
	"watertrack/internal/core"
	"watertrack/internal/log"
	"watertrack/internal/ports"
)

// Rebuilder recomputes the summary of one month.
type Rebuilder interface {
	Rebuild(ctx context.Context, userID, monthKey string) (core.MonthSummary, error)
}

// SummaryWorker keeps month summaries in step with DayChanged messages.
type SummaryWorker struct {
	builder     Rebuilder
	dirty       ports.SummaryStore
	batchSize   int
	concurrency int
	logger      *log.Logger

	// bursts of messages for one month collapse into one rebuild
	group singleflight.Group
}

func NewSummaryWorker(builder Rebuilder, dirty ports.SummaryStore, batchSize int) *SummaryWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SummaryWorker{
		builder:     builder,
		dirty:       dirty,
		batchSize:   batchSize,
		concurrency: 4,
		logger:      log.For(log.ComponentWorker),
	}
}

// HandleDayChanged processes a single day changed message from AMQP
func (w *SummaryWorker) HandleDayChanged(ctx context.Context, msg *amqp.DayChangedMessage) error {
	monthKey := msg.MonthKey()

	w.logger.InfoContext(ctx, "Processing day changed message",
		log.FieldUserID, msg.UserID,
		log.FieldDate, msg.Date.String(),
		log.FieldMonthKey, monthKey)

	if err := w.rebuild(ctx, msg.UserID, monthKey); err != nil {
		return fmt.Errorf("rebuild summary: %w", err)
	}
	return nil
}

func (w *SummaryWorker) rebuild(ctx context.Context, userID, monthKey string) error {
	_, err, shared := w.group.Do(userID+"/"+monthKey, func() (any, error) {
		return w.builder.Rebuild(ctx, userID, monthKey)
	})
	if shared {
		w.logger.DebugContext(ctx, "Summary rebuild shared",
			log.FieldUserID, userID,
			log.FieldMonthKey, monthKey)
	}
	return err
}

// StartupCheck rebuilds every month left dirty while the worker was down.
// Failures are logged and left dirty for the periodic processor.
func (w *SummaryWorker) StartupCheck(ctx context.Context) error {
	refs, err := w.dirty.DirtyMonths(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list dirty months for startup check: %w", err)
	}

	if len(refs) == 0 {
		w.logger.InfoContext(ctx, "No dirty months found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "Found dirty months on startup, processing...",
		"count", len(refs))

	results := make([]error, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = w.rebuild(gctx, ref.UserID, ref.MonthKey)
			return nil
		})
	}
	g.Wait()

	errorCount := 0
	for i, err := range results {
		if err != nil {
			errorCount++
			w.logger.ErrorContext(ctx, "Failed to rebuild month during startup",
				log.FieldUserID, refs[i].UserID,
				log.FieldMonthKey, refs[i].MonthKey,
				log.FieldError, err)
		}
	}

	w.logger.InfoContext(ctx, "Startup rebuild completed",
		"total", len(refs),
		"rebuilt", len(refs)-errorCount,
		"errors", errorCount)

	return nil
}
