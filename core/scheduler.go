package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// workerSet is an immutable snapshot of the registered workers. Index 0 is always
// the main worker. A new set is published on every Start and Stop.
type workerSet struct {
	list []*Worker
	gen  uint64
}

// Scheduler owns a fixed-size pool of workers with per-worker deques and
// distributes tasks across them by work stealing.
//
// The goroutine that drives the simulation takes the role of the main worker
// (index 0) through MainContext. Start adds n-1 pool workers, each locked to its
// own OS thread. Tasks are posted to the deque of the worker the calling context
// belongs to, and any waiter in WorkUntilDone keeps executing tasks until the
// awaited Status is idle, so nested fan-out never deadlocks.
//
// Lifecycle methods (Init, Start, Stop) must be called from the driving
// goroutine while no Status is outstanding.
type Scheduler struct {
	id   string
	name string
	cfg  SchedulerConfig

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
	rejected     RejectedTaskHandler
	alloc        Allocator
	timed        bool

	lifecycleMu sync.Mutex
	main        *Worker
	workers     atomic.Pointer[workerSet]
	gen         atomic.Uint64
	idle        *idleGate

	threadCount       atomic.Int32
	workerThreadCount atomic.Int32
	initialized       atomic.Bool
	closing           atomic.Bool
}

// NewScheduler creates a scheduler whose registry holds only the main worker.
// Call Init or Start to add pool workers.
func NewScheduler(config *SchedulerConfig) *Scheduler {
	cfg := config.withDefaults()
	s := &Scheduler{
		id:           uuid.NewString(),
		name:         cfg.Name,
		cfg:          cfg,
		logger:       cfg.Logger,
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		rejected:     cfg.RejectedTaskHandler,
		alloc:        cfg.Allocator,
		idle:         newIdleGate(),
	}
	if _, ok := cfg.Metrics.(*NilMetrics); !ok {
		s.timed = true
	}

	s.main = newWorker(s, 0, "Main", WorkerTypeMain, 0)
	s.main.osThreadID.Store(int64(currentOSThreadID()))
	s.workers.Store(&workerSet{list: []*Worker{s.main}})
	s.threadCount.Store(1)
	s.workerThreadCount.Store(1)
	return s
}

// ID returns the unique instance id of the scheduler.
func (s *Scheduler) ID() string { return s.id }

// Name returns the configured scheduler name.
func (s *Scheduler) Name() string { return s.name }

// Logger returns the logger the scheduler writes to.
func (s *Scheduler) Logger() Logger { return s.logger }

// ThreadCount returns the number of workers including the main worker.
func (s *Scheduler) ThreadCount() int { return int(s.threadCount.Load()) }

// WorkerThreadCount returns the worker count requested by the last Start.
func (s *Scheduler) WorkerThreadCount() int { return int(s.workerThreadCount.Load()) }

// IsInitialized reports whether pool workers are running.
func (s *Scheduler) IsInitialized() bool { return s.initialized.Load() }

// IsClosing reports whether Stop is in progress.
func (s *Scheduler) IsClosing() bool { return s.closing.Load() }

// Init starts the pool with n workers, where n <= 0 selects
// GetHardwareThreadsCount. It is a no-op when the pool already runs with the
// same effective size.
func (s *Scheduler) Init(n int) error {
	n = effectiveThreadCount(n)

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.initialized.Load() && s.ThreadCount() == n {
		return nil
	}
	return s.startLocked(n)
}

// Start stops any running pool and starts a new one with n workers, the main
// worker included. Pinning failures are returned joined; the pool still runs
// with the affected threads unpinned.
func (s *Scheduler) Start(n int) error {
	n = effectiveThreadCount(n)

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.startLocked(n)
}

func (s *Scheduler) startLocked(n int) error {
	s.stopLocked()

	s.closing.Store(false)
	s.idle.open()

	gen := s.gen.Add(1)
	list := make([]*Worker, 0, n)
	list = append(list, s.main)
	for i := 1; i < n; i++ {
		list = append(list, newWorker(s, i, fmt.Sprintf("Worker %d", i), WorkerTypePool, gen))
	}
	s.workers.Store(&workerSet{list: list, gen: gen})

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		pinErrs []error
	)
	for _, w := range list[1:] {
		wg.Add(1)
		go w.run(func(err error) {
			if err != nil {
				errMu.Lock()
				pinErrs = append(pinErrs, fmt.Errorf("pin %s: %w", w.name, err))
				errMu.Unlock()
			}
			wg.Done()
		})
	}
	wg.Wait()

	s.threadCount.Store(int32(n))
	s.workerThreadCount.Store(int32(n))
	s.initialized.Store(true)

	err := errors.Join(pinErrs...)
	if err != nil {
		s.logger.Warn("failed to pin worker threads", F("scheduler", s.name), F("error", err))
	}
	s.logger.Info("scheduler started",
		F("scheduler", s.name), F("id", s.id), F("threads", n), F("pinned", s.cfg.PinThreads && err == nil))
	return err
}

// Stop shuts the pool down and leaves the scheduler with the main worker only.
// Tasks still queued on pool workers are moved to the main worker, so they run
// on the next WorkUntilDone from the main context. Stop is idempotent and safe
// on a scheduler that was never started.
func (s *Scheduler) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.initialized.Load() {
		return
	}

	s.closing.Store(true)
	s.idle.close()

	set := s.workers.Load()
	for _, w := range set.list[1:] {
		for !w.finished.Load() {
			runtime.Gosched()
			time.Sleep(time.Millisecond)
		}
	}

	moved := 0
	for _, w := range set.list[1:] {
		for _, t := range w.deque.Drain() {
			s.main.deque.PushBottom(t)
			moved++
		}
	}

	s.workers.Store(&workerSet{list: []*Worker{s.main}, gen: s.gen.Add(1)})
	s.threadCount.Store(1)
	s.workerThreadCount.Store(1)
	s.initialized.Store(false)
	s.closing.Store(false)

	s.logger.Info("scheduler stopped",
		F("scheduler", s.name), F("id", s.id), F("workers", len(set.list)), F("moved_tasks", moved))
}

// MainContext returns parent bound to the main worker. The goroutine driving the
// simulation uses it for Submit and WorkUntilDone. A nil parent means
// context.Background.
func (s *Scheduler) MainContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return withWorker(parent, s.main)
}

// NewTask allocates a task through the scheduler's Allocator and registers it
// on status. It panics if status is nil.
func (s *Scheduler) NewTask(status *Status, fn TaskFunc) *Task {
	return s.NewNamedTask("", status, fn)
}

// NewNamedTask is NewTask with a display name used in logs and errors.
func (s *Scheduler) NewNamedTask(name string, status *Status, fn TaskFunc) *Task {
	if status == nil {
		panic(ErrNilStatus)
	}
	t := s.alloc.Allocate()
	t.fn = fn
	t.status = status
	t.name = name
	t.alloc = s.alloc
	status.setBusy(true)
	return t
}

// AddTask enqueues t on the worker the calling context belongs to and wakes
// sleeping workers. When the task is rejected it is released without running
// and its Status is decremented, with the cause recorded on the Status.
func (s *Scheduler) AddTask(ctx context.Context, t *Task) error {
	if t == nil {
		return ErrNilTask
	}
	if t.status == nil {
		return ErrNilStatus
	}
	if t.fn == nil {
		s.reject(t, ErrNilTask)
		return ErrNilTask
	}

	w, err := s.resolveWorker(ctx)
	if err != nil {
		s.reject(t, err)
		return err
	}
	if s.closing.Load() {
		s.reject(t, ErrSchedulerClosing)
		return ErrSchedulerClosing
	}

	w.deque.PushBottom(t)
	s.idle.wake()
	return nil
}

// Submit creates a root task for fn under status and enqueues it on the calling
// worker.
func (s *Scheduler) Submit(ctx context.Context, status *Status, fn TaskFunc) error {
	return s.SubmitNamed(ctx, "", status, fn)
}

// SubmitNamed is Submit with a task display name.
func (s *Scheduler) SubmitNamed(ctx context.Context, name string, status *Status, fn TaskFunc) error {
	if fn == nil {
		return ErrNilTask
	}
	if status == nil {
		return ErrNilStatus
	}
	return s.AddTask(ctx, s.NewNamedTask(name, status, fn))
}

// Spawn adds a child task to status from inside a running task. The child goes
// to the deque of the worker executing the caller, where idle peers can steal it.
func (s *Scheduler) Spawn(ctx context.Context, status *Status, fn TaskFunc) error {
	return s.SubmitNamed(ctx, "", status, fn)
}

// WorkUntilDone executes tasks on the calling worker, its own first and then
// stolen ones, until status has no pending task. It returns immediately when
// status is already idle. Task errors are not returned here; read them from
// status.Err.
func (s *Scheduler) WorkUntilDone(ctx context.Context, status *Status) error {
	if status == nil {
		return ErrNilStatus
	}
	w, err := s.resolveWorker(ctx)
	if err != nil {
		return err
	}
	if !status.IsBusy() {
		return nil
	}
	w.workUntilDone(ctx, status)
	return nil
}

// WakeUpWorkers releases every pool worker blocked on the idle gate.
func (s *Scheduler) WakeUpWorkers() {
	s.idle.wake()
}

// CurrentThreadName returns the name of the worker ctx belongs to, or "" when ctx
// is not bound to a worker of this scheduler.
func (s *Scheduler) CurrentThreadName(ctx context.Context) string {
	w, err := s.resolveWorker(ctx)
	if err != nil {
		return ""
	}
	return w.name
}

// CurrentThreadType returns the type of the worker ctx belongs to.
func (s *Scheduler) CurrentThreadType(ctx context.Context) WorkerType {
	w, err := s.resolveWorker(ctx)
	if err != nil {
		return WorkerTypeUnknown
	}
	return w.typ
}

// Workers returns the currently registered workers, main worker first.
func (s *Scheduler) Workers() []*Worker {
	set := s.workers.Load()
	out := make([]*Worker, len(set.list))
	copy(out, set.list)
	return out
}

// Stats returns a point-in-time snapshot of the scheduler and its workers.
func (s *Scheduler) Stats() SchedulerStats {
	set := s.workers.Load()
	stats := SchedulerStats{
		ID:                s.id,
		Name:              s.name,
		ThreadCount:       s.ThreadCount(),
		WorkerThreadCount: s.WorkerThreadCount(),
		Initialized:       s.initialized.Load(),
		Closing:           s.closing.Load(),
		WorkersIdle:       s.idle.idle(),
		Workers:           make([]WorkerStats, 0, len(set.list)),
	}
	for _, w := range set.list {
		ws := w.Stats()
		stats.Queued += ws.Queued
		stats.Workers = append(stats.Workers, ws)
	}
	return stats
}

// resolveWorker maps ctx to a live worker of this scheduler. Contexts of pool
// workers from a stopped generation are rejected.
func (s *Scheduler) resolveWorker(ctx context.Context) (*Worker, error) {
	w := WorkerFromContext(ctx)
	if w == nil || w.sched != s {
		return nil, ErrUnknownWorker
	}
	if w.typ == WorkerTypePool && w.gen != s.workers.Load().gen {
		return nil, ErrUnknownWorker
	}
	return w, nil
}

func (s *Scheduler) hasQueuedWork() bool {
	for _, w := range s.workers.Load().list {
		if !w.deque.IsEmpty() {
			return true
		}
	}
	return false
}

func (s *Scheduler) reject(t *Task, cause error) {
	var reason string
	switch {
	case errors.Is(cause, ErrSchedulerClosing):
		reason = "shutting down"
	case errors.Is(cause, ErrUnknownWorker):
		reason = "unknown worker"
	default:
		reason = cause.Error()
	}

	name := t.displayName()
	status := t.status
	s.rejected.HandleRejectedTask(s.name, name, reason)
	s.metrics.RecordTaskRejected(s.name, reason)
	s.logger.Warn("task rejected", F("scheduler", s.name), F("task", name), F("reason", reason))

	status.recordError(fmt.Errorf("task %q rejected: %w", name, cause))
	if t.alloc != nil {
		t.alloc.Free(t)
	}
	status.setBusy(false)
}
