package core

import (
	"sync/atomic"

	"github.com/fyh275905/sofa-sub006/internal/syncx"
)

const (
	defaultDequeCap = 64
	dequeShrinkMin  = 1024 // Don't shrink below this capacity
)

// TaskDeque is a worker's local double-ended task queue.
//
// The owning worker pushes and pops at the bottom (LIFO), which drains freshly
// spawned sub-work depth first while it is still hot in cache. Thieves take from
// the top (FIFO), so they get the oldest and usually coarsest work and rarely
// collide with the owner. Each deque has its own lock; there is no global queue
// lock. The length is mirrored in an atomic so idle checks never take the lock.
type TaskDeque struct {
	mu    syncx.Mutex
	buf   []*Task
	head  int // index of the oldest task
	count int

	size atomic.Int64
}

// NewTaskDeque creates an empty deque.
func NewTaskDeque() *TaskDeque {
	return &TaskDeque{buf: make([]*Task, defaultDequeCap)}
}

// PushBottom appends a task at the owner end.
func (d *TaskDeque) PushBottom(t *Task) {
	d.mu.Lock()
	if d.count == len(d.buf) {
		d.resizeLocked(len(d.buf) * 2)
	}
	d.buf[(d.head+d.count)%len(d.buf)] = t
	d.count++
	d.size.Add(1)
	d.mu.Unlock()
}

// PopBottom removes the most recently pushed task.
func (d *TaskDeque) PopBottom() (*Task, bool) {
	if d.size.Load() == 0 {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return nil, false
	}
	idx := (d.head + d.count - 1) % len(d.buf)
	t := d.buf[idx]
	d.buf[idx] = nil
	d.count--
	d.size.Add(-1)
	d.maybeShrinkLocked()
	return t, true
}

// StealTop removes the oldest task. It is called by other workers.
func (d *TaskDeque) StealTop() (*Task, bool) {
	if d.size.Load() == 0 {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return nil, false
	}
	t := d.buf[d.head]
	d.buf[d.head] = nil
	d.head = (d.head + 1) % len(d.buf)
	d.count--
	d.size.Add(-1)
	d.maybeShrinkLocked()
	return t, true
}

// Len returns the number of queued tasks without locking.
func (d *TaskDeque) Len() int {
	return int(d.size.Load())
}

// IsEmpty reports whether the deque holds no task.
func (d *TaskDeque) IsEmpty() bool {
	return d.size.Load() == 0
}

// Drain removes every task, oldest first.
func (d *TaskDeque) Drain() []*Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return nil
	}
	out := make([]*Task, 0, d.count)
	for d.count > 0 {
		out = append(out, d.buf[d.head])
		d.buf[d.head] = nil
		d.head = (d.head + 1) % len(d.buf)
		d.count--
	}
	d.size.Store(0)
	d.head = 0
	return out
}

func (d *TaskDeque) resizeLocked(newCap int) {
	nb := make([]*Task, newCap)
	for i := 0; i < d.count; i++ {
		nb[i] = d.buf[(d.head+i)%len(d.buf)]
	}
	d.buf = nb
	d.head = 0
}

// maybeShrinkLocked releases memory after a burst: when a large buffer is less
// than a quarter full it is halved.
func (d *TaskDeque) maybeShrinkLocked() {
	c := len(d.buf)
	if c <= dequeShrinkMin || d.count*4 >= c {
		return
	}
	d.resizeLocked(max(c/2, defaultDequeCap))
}
