package loader

import (
	"context"
	"sync"
)

// Outcome tells how a load finished.
type Outcome int

const (
	// OutcomePending is reported by Result before the task is done.
	OutcomePending Outcome = iota
	// OutcomeCached means the day was already held and nothing was fetched.
	OutcomeCached
	// OutcomeFetched means fresh data was installed in the store.
	OutcomeFetched
	// OutcomeSuperseded means the fetch finished after a newer load started
	// or after the task was cancelled. Its data was discarded.
	OutcomeSuperseded
	// OutcomeFailed means the fetch failed; the store is unchanged.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeFetched:
		return "fetched"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Task is the future returned by Session.Load.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc

	once    sync.Once
	outcome Outcome
	err     error
}

func newTask(cancel context.CancelFunc) *Task {
	if cancel == nil {
		cancel = func() {}
	}
	return &Task{done: make(chan struct{}), cancel: cancel}
}

func completedTask(outcome Outcome, err error) *Task {
	t := newTask(nil)
	t.complete(outcome, err)
	return t
}

func (t *Task) complete(outcome Outcome, err error) {
	t.once.Do(func() {
		t.outcome = outcome
		t.err = err
		t.cancel()
		close(t.done)
	})
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

// Result returns the outcome without blocking.
func (t *Task) Result() (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	default:
		return OutcomePending, nil
	}
}

// Cancel abandons the task. A fetch already on the wire still completes but
// its result is discarded.
func (t *Task) Cancel() {
	t.cancel()
}
