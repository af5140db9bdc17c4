// Package loader decides when tracker data has to be fetched and installs
// fetched months into the session store.
//
// A Session lives from sign-in to sign-out. The first load fetches the month
// and the controls; later loads are served from the store when the requested
// day is already held and fetch the month otherwise. Every fetch carries a
// generation number, and a completion that is no longer the newest is
// dropped instead of overwriting fresher data.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/log"
	"watertrack/internal/store"
)

var (
	// ErrFetchFailed wraps every error returned by the Fetcher.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrClosed is returned by loads issued after Close.
	ErrClosed = errors.New("session closed")
)

// Fetcher retrieves account data from the persistence collaborator.
type Fetcher interface {
	FetchMonth(ctx context.Context, year int, month time.Month) (core.Month, error)
	FetchControls(ctx context.Context) (core.Controls, error)
}

// Phase is the externally visible state of a session.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoadingFirst
	PhaseIdle
	PhaseReloading
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadingFirst:
		return "loading_first"
	case PhaseIdle:
		return "idle"
	case PhaseReloading:
		return "reloading"
	default:
		return "uninitialized"
	}
}

// State is an immutable snapshot of a session.
type State struct {
	Month            core.Month
	Controls         core.Controls
	InitialLoading   bool
	ContentIsLoading bool
	Initialized      bool
	Phase            Phase
}

// Session is the per-account tracker state.
type Session struct {
	fetcher Fetcher
	store   store.Store
	group   singleflight.Group
	logger  *log.Logger

	// ctx bounds fetches shared between tasks; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	controls       core.Controls
	initialized    bool
	initialLoading bool
	contentLoading bool
	generation     uint64
	// pending is the month key of the newest fetch while one is running.
	pending string
	closed  bool
}

// NewSession starts a session at sign-in.
func NewSession(fetcher Fetcher) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		fetcher: fetcher,
		logger:  log.For(log.ComponentLoader),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load makes the day at date available in the store.
func (s *Session) Load(ctx context.Context, date time.Time) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return completedTask(OutcomeFailed, ErrClosed)
	}
	if s.initialized {
		if _, ok := s.store.Day(date); ok {
			// A running fetch of the same month stays current; one for
			// another month would replace the held day and is superseded.
			if s.contentLoading && s.pending != calendar.MonthKey(date) {
				s.generation++
				s.contentLoading = false
				s.pending = ""
			}
			return completedTask(OutcomeCached, nil)
		}
	}
	return s.startLocked(ctx, date)
}

// Refresh fetches the month of date even when the day is held, typically
// after a mutation.
func (s *Session) Refresh(ctx context.Context, date time.Time) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return completedTask(OutcomeFailed, ErrClosed)
	}
	return s.startLocked(ctx, date)
}

func (s *Session) startLocked(ctx context.Context, date time.Time) *Task {
	s.generation++
	gen := s.generation
	s.pending = calendar.MonthKey(date)
	first := !s.initialized
	if first {
		s.initialLoading = true
	} else {
		s.contentLoading = true
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := newTask(cancel)
	go func() {
		month, controls, err := s.fetch(taskCtx, date, first)
		outcome, err := s.finish(taskCtx, gen, first, month, controls, err)
		task.complete(outcome, err)
	}()
	return task
}

func (s *Session) fetch(ctx context.Context, date time.Time, first bool) (core.Month, core.Controls, error) {
	if !first {
		m, err := s.fetchMonth(ctx, date)
		return m, core.Controls{}, err
	}

	var (
		month    core.Month
		controls core.Controls
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.fetchMonth(gctx, date)
		if err != nil {
			return err
		}
		month = m
		return nil
	})
	g.Go(func() error {
		c, err := s.fetcher.FetchControls(gctx)
		if err != nil {
			return fmt.Errorf("controls: %w", err)
		}
		controls = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, core.Controls{}, err
	}
	return month, controls, nil
}

// fetchMonth collapses concurrent requests for the same month into one call.
// The shared call runs on the session context so one waiter giving up does
// not fail the others.
func (s *Session) fetchMonth(ctx context.Context, date time.Time) (core.Month, error) {
	key := calendar.MonthKey(date)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetcher.FetchMonth(s.ctx, date.Year(), date.Month())
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("month %s: %w", key, r.Err)
		}
		return r.Val.(core.Month), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) finish(ctx context.Context, gen uint64, first bool, month core.Month, controls core.Controls, err error) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := gen == s.generation && !s.closed
	if current {
		s.initialLoading = false
		s.contentLoading = false
		s.pending = ""
	}
	if !current || ctx.Err() != nil {
		s.logger.DebugContext(ctx, "Discarding superseded load", log.FieldGeneration, gen)
		return OutcomeSuperseded, nil
	}

	if err != nil {
		s.logger.WarnContext(ctx, "Load failed",
			log.FieldOperation, log.OpFetch,
			log.FieldError, err)
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	s.store.ReplaceAll(month)
	if first {
		s.controls = controls
		s.initialized = true
	}
	return OutcomeFetched, nil
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Month:            s.store.Snapshot(),
		Controls:         s.controls,
		InitialLoading:   s.initialLoading,
		ContentIsLoading: s.contentLoading,
		Initialized:      s.initialized,
	}
	switch {
	case !s.initialized && s.initialLoading:
		st.Phase = PhaseLoadingFirst
	case !s.initialized:
		st.Phase = PhaseUninitialized
	case s.contentLoading:
		st.Phase = PhaseReloading
	default:
		st.Phase = PhaseIdle
	}
	return st
}

// Day returns the held day at date.
func (s *Session) Day(date time.Time) (*core.Day, bool) {
	return s.store.Day(date)
}

// Week returns the held week containing date.
func (s *Session) Week(date time.Time) (core.Week, bool) {
	return s.store.Week(date)
}

// Month returns the current store contents. Read-only.
func (s *Session) Month() core.Month {
	return s.store.Snapshot()
}

// SetControls replaces the held controls, usually with a server response.
func (s *Session) SetControls(c core.Controls) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = c
}

// Close tears the session down at sign-out. Fetches in flight are cancelled
// and their results discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.generation++
	s.initialized = false
	s.initialLoading = false
	s.contentLoading = false
	s.pending = ""
	s.controls = core.Controls{}
	s.store.Reset()
}
