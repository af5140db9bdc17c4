package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"watertrack/internal/log"
	"watertrack/internal/ports"
)

// SummaryProcessorConfig holds configuration for the summary processor
type SummaryProcessorConfig struct {
	// PollInterval is how often dirty months are looked up (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of months rebuilt per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is how often a failing month is retried before it is
	// skipped until restart (default: 3)
	MaxRetries int
}

// DefaultSummaryProcessorConfig returns sensible defaults
func DefaultSummaryProcessorConfig() SummaryProcessorConfig {
	return SummaryProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// SummaryProcessor rebuilds months marked dirty. It backs up the AMQP path
// for messages that were never published or got lost.
type SummaryProcessor struct {
	repo    ports.SummaryStore
	builder *SummaryBuilder
	config  SummaryProcessorConfig

	attempts map[ports.MonthRef]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSummaryProcessor creates a new summary processor
func NewSummaryProcessor(repo ports.SummaryStore, builder *SummaryBuilder, config SummaryProcessorConfig) *SummaryProcessor {
	return &SummaryProcessor{
		repo:     repo,
		builder:  builder,
		config:   config,
		attempts: make(map[ports.MonthRef]int),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SummaryProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("summary processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Summary processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SummaryProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Summary processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Summary processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SummaryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SummaryProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch rebuilds up to BatchSize dirty months and returns how many
// succeeded.
func (p *SummaryProcessor) ProcessBatch(ctx context.Context) int {
	// skipped months stay dirty, look past them
	refs, err := p.repo.DirtyMonths(ctx, p.config.BatchSize+p.skipped())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list dirty months", log.FieldError, err)
		return 0
	}
	if len(refs) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing dirty months", "count", len(refs))

	done, tried := 0, 0
	for _, ref := range refs {
		if tried >= p.config.BatchSize {
			break
		}
		select {
		case <-p.stopCh:
			return done
		case <-ctx.Done():
			return done
		default:
		}

		if p.attempts[ref] >= p.config.MaxRetries {
			continue
		}
		tried++

		if _, err := p.builder.Rebuild(ctx, ref.UserID, ref.MonthKey); err != nil {
			p.handleFailure(ctx, ref, err)
			continue
		}
		delete(p.attempts, ref)
		done++
	}
	return done
}

func (p *SummaryProcessor) skipped() int {
	n := 0
	for _, a := range p.attempts {
		if a >= p.config.MaxRetries {
			n++
		}
	}
	return n
}

func (p *SummaryProcessor) handleFailure(ctx context.Context, ref ports.MonthRef, err error) {
	p.attempts[ref]++
	attempt := p.attempts[ref]

	slog.WarnContext(ctx, "Summary rebuild failed",
		log.FieldUserID, ref.UserID,
		log.FieldMonthKey, ref.MonthKey,
		"attempt", attempt,
		log.FieldError, err)

	if attempt >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Month skipped after max retries",
			log.FieldUserID, ref.UserID,
			log.FieldMonthKey, ref.MonthKey,
			"attempts", attempt)
	}
}
