package core

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Status tracks how many tasks of a submitted subgraph are still unfinished.
//
// A Status is shared by a root task and every task spawned under it. Each task
// created against the Status increments the pending count, and each completed task
// decrements it exactly once, so the count reaches zero only when the whole
// subgraph has run. Waiters poll IsBusy from inside the worker loop; there is no
// one-shot completion event.
//
// The zero value is ready to use. A Status must outlive every task that
// references it, which the owner guarantees by keeping it alive across the
// WorkUntilDone call.
type Status struct {
	pending atomic.Int64

	mu   sync.Mutex
	errs []error
}

// NewStatus returns an idle Status.
func NewStatus() *Status {
	return &Status{}
}

// Pending returns the number of tasks created against the Status that have not
// finished yet.
func (s *Status) Pending() int64 {
	return s.pending.Load()
}

// IsBusy reports whether any task of the subgraph is still pending.
func (s *Status) IsBusy() bool {
	return s.pending.Load() > 0
}

// Err returns every error recorded by the subgraph joined together, or nil.
func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}

// Errors returns a copy of the recorded errors in completion order.
func (s *Status) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Reset clears recorded errors so an idle Status can be reused. It returns false
// and leaves the Status untouched while tasks are still pending.
func (s *Status) Reset() bool {
	if s.IsBusy() {
		return false
	}
	s.mu.Lock()
	s.errs = nil
	s.mu.Unlock()
	return true
}

func (s *Status) setBusy(busy bool) {
	if busy {
		s.pending.Add(1)
		return
	}
	if s.pending.Add(-1) < 0 {
		panic("simtask: status pending count went negative")
	}
}

func (s *Status) recordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}
