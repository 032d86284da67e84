package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// WorkerType distinguishes the registering main worker from pool workers.
type WorkerType int

const (
	WorkerTypeUnknown WorkerType = iota - 1
	WorkerTypeMain
	WorkerTypePool
)

func (t WorkerType) String() string {
	switch t {
	case WorkerTypeMain:
		return "main"
	case WorkerTypePool:
		return "pool"
	default:
		return "unknown"
	}
}

// Worker is the per-thread execution context: it owns a local TaskDeque and runs
// the scheduling loop. Worker 0 is the main worker, driven by whichever goroutine
// holds the scheduler's MainContext; the others are pool workers, each a
// goroutine locked to its own OS thread.
type Worker struct {
	sched *Scheduler
	index int
	name  string
	typ   WorkerType
	gen   uint64
	ctx   context.Context
	deque *TaskDeque

	osThreadID atomic.Int64
	state      atomic.Int32
	finished   atomic.Bool
	cursor     atomic.Uint32

	executed    atomic.Uint64
	stolen      atomic.Uint64
	stealMisses atomic.Uint64
	idleWaits   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
}

func newWorker(s *Scheduler, index int, name string, typ WorkerType, gen uint64) *Worker {
	w := &Worker{
		sched: s,
		index: index,
		name:  name,
		typ:   typ,
		gen:   gen,
		deque: NewTaskDeque(),
	}
	w.ctx = withWorker(context.Background(), w)
	w.cursor.Store(uint32(index))
	return w
}

// Index returns the worker's position in the registry; 0 is the main worker.
func (w *Worker) Index() int { return w.index }

// Name returns the display name of the worker.
func (w *Worker) Name() string { return w.name }

// Type returns whether this is the main worker or a pool worker.
func (w *Worker) Type() WorkerType { return w.typ }

// OSThreadID returns the kernel thread id the worker is locked to, or 0 when
// unknown.
func (w *Worker) OSThreadID() int { return int(w.osThreadID.Load()) }

// State returns the current loop state.
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

// IsFinished reports whether a pool worker has left its loop during Stop.
func (w *Worker) IsFinished() bool { return w.finished.Load() }

// QueuedTasks returns the number of tasks waiting in the worker's deque.
func (w *Worker) QueuedTasks() int { return w.deque.Len() }

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Index:       w.index,
		Name:        w.name,
		Type:        w.typ,
		OSThreadID:  w.OSThreadID(),
		State:       w.State(),
		Queued:      w.deque.Len(),
		Executed:    w.executed.Load(),
		Stolen:      w.stolen.Load(),
		StealMisses: w.stealMisses.Load(),
		IdleWaits:   w.idleWaits.Load(),
		Failed:      w.failed.Load(),
		Panicked:    w.panicked.Load(),
	}
}

// run is the body of a pool worker goroutine. It loops until the scheduler
// closes: pop own work, else steal, else yield SpinCount times, else block on
// the idle gate. ready is called once the goroutine is bound to its OS thread.
func (w *Worker) run(ready func(error)) {
	s := w.sched
	tid, err := bindOSThread(s.cfg.PinThreads, w.index)
	w.osThreadID.Store(int64(tid))
	if ready != nil {
		ready(err)
	}

	defer func() {
		if w.finished.Load() {
			return
		}
		// A task called runtime.Goexit and took the loop goroutine with it.
		s.logger.Error("worker loop exited abnormally, restarting", F("worker", w.name))
		go w.run(nil)
	}()

	spins := 0
	for !s.closing.Load() {
		if t, ok := w.nextTask(); ok {
			w.runTask(w.ctx, t)
			spins = 0
			continue
		}
		if spins < s.cfg.SpinCount {
			spins++
			runtime.Gosched()
			continue
		}
		spins = 0

		w.state.Store(int32(WorkerStateIdle))
		w.idleWaits.Add(1)
		s.metrics.RecordIdleWait(s.name, w.name)
		if !s.idle.wait(s.hasQueuedWork) {
			break
		}
	}

	w.state.Store(int32(WorkerStateFinished))
	w.finished.Store(true)
}

// workUntilDone runs the same loop as a pool worker on the calling goroutine
// and returns as soon as status is idle, even if unrelated work is still
// queued. It never parks on the idle gate: a waiting goroutine keeps servicing
// the pool so nested waits cannot deadlock.
func (w *Worker) workUntilDone(ctx context.Context, status *Status) {
	s := w.sched
	spins := 0
	for status.IsBusy() {
		if t, ok := w.nextTask(); ok {
			w.runTask(ctx, t)
			spins = 0
			continue
		}
		if spins < s.cfg.SpinCount || s.cfg.WaitBackoff == 0 {
			spins++
			runtime.Gosched()
			continue
		}
		time.Sleep(s.cfg.WaitBackoff)
	}
	w.state.Store(int32(WorkerStateIdle))
}

func (w *Worker) nextTask() (*Task, bool) {
	if t, ok := w.deque.PopBottom(); ok {
		return t, true
	}
	return w.steal()
}

// steal scans the other workers round-robin, starting after the previous
// victim, and takes the oldest task of the first non-empty deque. At most
// StealRounds full scans are made.
func (w *Worker) steal() (*Task, bool) {
	s := w.sched
	set := s.workers.Load()
	n := len(set.list)
	if n < 2 {
		return nil, false
	}

	w.state.Store(int32(WorkerStateStealing))
	start := int(w.cursor.Add(1) % uint32(n))
	for round := 0; round < s.cfg.StealRounds; round++ {
		for i := 0; i < n; i++ {
			victim := set.list[(start+i)%n]
			if victim == w {
				continue
			}
			if t, ok := victim.deque.StealTop(); ok {
				w.cursor.Store(uint32(victim.index))
				w.stolen.Add(1)
				s.metrics.RecordTaskStolen(s.name, w.name)
				return t, true
			}
		}
	}
	w.stealMisses.Add(1)
	return nil, false
}

// runTask executes t, records its outcome on the status, returns the task to
// its allocator and only then releases the status.
func (w *Worker) runTask(parent context.Context, t *Task) {
	s := w.sched
	w.state.Store(int32(WorkerStateRunning))

	status := t.status
	ctx := &taskContext{Context: parent, worker: w, status: status}

	var start time.Time
	if s.timed {
		start = time.Now()
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		// runtime.Goexit inside the task: still balance the status.
		status.recordError(&TaskError{Task: t.displayName(), Worker: w.name, Err: errTaskExited})
		w.finishTask(t, status)
	}()

	if err := w.invoke(ctx, t); err != nil {
		status.recordError(err)
	}
	if s.timed {
		s.metrics.RecordTaskDuration(s.name, w.name, time.Since(start))
	}
	completed = true
	w.finishTask(t, status)
}

func (w *Worker) finishTask(t *Task, status *Status) {
	w.executed.Add(1)
	t.alloc.Free(t)
	status.setBusy(false)
}

func (w *Worker) invoke(ctx context.Context, t *Task) (err error) {
	s := w.sched
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			w.panicked.Add(1)
			s.panicHandler.HandlePanic(ctx, s.name, w.index, r, stack)
			s.metrics.RecordTaskPanic(s.name, r)
			s.logger.Error("task panicked",
				F("scheduler", s.name), F("worker", w.name), F("task", t.displayName()), F("panic", r))
			err = &PanicError{Task: t.displayName(), Worker: w.name, Value: r, Stack: stack}
		}
	}()

	if ferr := t.fn(ctx); ferr != nil {
		w.failed.Add(1)
		s.metrics.RecordTaskFailure(s.name)
		s.logger.Error("task failed",
			F("scheduler", s.name), F("worker", w.name), F("task", t.displayName()), F("error", ferr))
		return &TaskError{Task: t.displayName(), Worker: w.name, Err: ferr}
	}
	return nil
}

// taskContext binds the executing worker and the task status to the context a
// task function receives, in a single allocation.
type taskContext struct {
	context.Context
	worker *Worker
	status *Status
}

func (c *taskContext) Value(key any) any {
	switch key.(type) {
	case workerKeyType:
		return c.worker
	case statusKeyType:
		return c.status
	}
	return c.Context.Value(key)
}
