package action

import (
	"fmt"
	"slices"
	"sync"
)

// Status is a state in the per-invocation state machine:
//
//	pending -> precondition_checked -> cache_hit -> done
//	                                -> cache_miss -> running -> succeeded -> done
//	                                                         -> skipped   -> done
//	                                                         -> failed    -> error
//
// Validation and precondition failures move straight to failed.
type Status string

const (
	StatusPending             Status = "pending"
	StatusPreconditionChecked Status = "precondition_checked"
	StatusCacheHit            Status = "cache_hit"
	StatusCacheMiss           Status = "cache_miss"
	StatusRunning             Status = "running"
	StatusSucceeded           Status = "succeeded"
	StatusSkipped             Status = "skipped"
	StatusFailed              Status = "failed"
	StatusDone                Status = "done"
	StatusError               Status = "error"
)

var transitions = map[Status][]Status{
	StatusPending:             {StatusPreconditionChecked, StatusFailed},
	StatusPreconditionChecked: {StatusCacheHit, StatusCacheMiss, StatusFailed},
	StatusCacheHit:            {StatusDone},
	StatusCacheMiss:           {StatusRunning},
	StatusRunning:             {StatusSucceeded, StatusSkipped, StatusFailed},
	StatusSucceeded:           {StatusDone, StatusFailed},
	StatusSkipped:             {StatusDone},
	StatusFailed:              {StatusError},
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// IsTerminal reports whether s ends the machine.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// IsOutcome reports whether s is one of the reportable results of a run.
func (s Status) IsOutcome() bool {
	switch s {
	case StatusCacheHit, StatusSucceeded, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// Tracker records the transitions of one invocation.
type Tracker struct {
	mu      sync.Mutex
	trace   []Status
	outcome Status
}

func NewTracker() *Tracker {
	return &Tracker{trace: []Status{StatusPending}}
}

// Advance moves to next, rejecting transitions the machine does not allow.
func (t *Tracker) Advance(next Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.trace[len(t.trace)-1]
	if !cur.CanTransition(next) {
		return fmt.Errorf("invalid status transition %s -> %s", cur, next)
	}
	t.trace = append(t.trace, next)
	if next.IsOutcome() {
		t.outcome = next
	}
	return nil
}

// Fail moves to failed then error from any non-terminal state that allows it.
// It is a no-op once the machine has ended.
func (t *Tracker) Fail() {
	t.mu.Lock()
	cur := t.trace[len(t.trace)-1]
	t.mu.Unlock()

	if cur.IsTerminal() {
		return
	}
	if cur != StatusFailed {
		if err := t.Advance(StatusFailed); err != nil {
			// cache_miss cannot fail directly; pass through running.
			_ = t.Advance(StatusRunning)
			_ = t.Advance(StatusFailed)
		}
	}
	_ = t.Advance(StatusError)
}

func (t *Tracker) Current() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trace[len(t.trace)-1]
}

// Outcome is the last reportable result reached.
func (t *Tracker) Outcome() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

func (t *Tracker) Trace() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.trace)
}
