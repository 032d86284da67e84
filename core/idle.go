package core

import (
	"sync"
	"sync/atomic"
)

// idleGate is the shared wait/wake primitive for pool workers with nothing to do.
//
// Sleepers register before their final look for work and wait for the epoch to
// move; wakers bump the epoch under the mutex and broadcast. A task pushed after
// a sleeper registered therefore either is seen by the sleeper's last check or
// finds a registered sleeper and wakes it.
type idleGate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	epoch    uint64
	closed   bool
	sleepers atomic.Int32
}

func newIdleGate() *idleGate {
	g := &idleGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// wait blocks until wake or close is called. hasWork is evaluated after the
// caller registered as a sleeper; when it reports work the call returns at once.
// It returns false when the gate is closed.
func (g *idleGate) wait(hasWork func() bool) bool {
	g.sleepers.Add(1)
	defer g.sleepers.Add(-1)

	g.mu.Lock()
	epoch := g.epoch
	closed := g.closed
	g.mu.Unlock()

	if closed {
		return false
	}
	if hasWork() {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for g.epoch == epoch && !g.closed {
		g.cond.Wait()
	}
	return !g.closed
}

// idle reports whether any worker is registered as sleeping.
func (g *idleGate) idle() bool {
	return g.sleepers.Load() > 0
}

// wake releases every sleeper. It is cheap when nobody sleeps.
func (g *idleGate) wake() {
	if g.sleepers.Load() == 0 {
		return
	}
	g.mu.Lock()
	g.epoch++
	g.mu.Unlock()
	g.cond.Broadcast()
}

// close releases every sleeper and makes later waits return immediately.
func (g *idleGate) close() {
	g.mu.Lock()
	g.closed = true
	g.epoch++
	g.mu.Unlock()
	g.cond.Broadcast()
}

// open re-arms a closed gate.
func (g *idleGate) open() {
	g.mu.Lock()
	g.closed = false
	g.mu.Unlock()
}
