package simtask

import (
	"context"
	"sync"

	"github.com/fyh275905/sofa-sub006/core"
)

// =============================================================================
// Global Scheduler Helper (Singleton)
// =============================================================================

var (
	globalScheduler *core.Scheduler
	globalName      string
	globalMu        sync.Mutex
)

// GlobalScheduler returns the process-wide scheduler, creating it from the
// "default" factory on first use. A freshly created scheduler runs on the main
// worker only until Init or Start is called.
func GlobalScheduler() *core.Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler == nil {
		globalScheduler = mustFactory(DefaultSchedulerName)()
		globalName = DefaultSchedulerName
	}
	return globalScheduler
}

// Init starts the global pool with n workers (0 selects the hardware default).
// It is a no-op when the pool already runs with that size.
func Init(n int) error {
	return GlobalScheduler().Init(n)
}

// Start restarts the global pool with n workers.
func Start(n int) error {
	return GlobalScheduler().Start(n)
}

// Stop shuts the global pool down, leaving only the main worker.
func Stop() {
	globalMu.Lock()
	s := globalScheduler
	globalMu.Unlock()

	if s != nil {
		s.Stop()
	}
}

// MainContext returns a context bound to the main worker of the global scheduler.
func MainContext() context.Context {
	return GlobalScheduler().MainContext(context.Background())
}

// NewTask creates a task on the global scheduler and registers it on status.
func NewTask(status *Status, fn TaskFunc) *Task {
	return GlobalScheduler().NewTask(status, fn)
}

// AddTask enqueues t on the worker bound to ctx.
func AddTask(ctx context.Context, t *Task) error {
	return schedulerFor(ctx).AddTask(ctx, t)
}

// Submit creates and enqueues a root task under status.
func Submit(ctx context.Context, status *Status, fn TaskFunc) error {
	return schedulerFor(ctx).Submit(ctx, status, fn)
}

// Spawn adds a child task to status from inside a running task.
func Spawn(ctx context.Context, status *Status, fn TaskFunc) error {
	return schedulerFor(ctx).Spawn(ctx, status, fn)
}

// WorkUntilDone helps executing tasks until status is idle.
func WorkUntilDone(ctx context.Context, status *Status) error {
	return schedulerFor(ctx).WorkUntilDone(ctx, status)
}

// GetCurrentThreadName returns the name of the worker bound to ctx.
func GetCurrentThreadName(ctx context.Context) string {
	return schedulerFor(ctx).CurrentThreadName(ctx)
}

// GetCurrentThreadType returns the type of the worker bound to ctx.
func GetCurrentThreadType(ctx context.Context) WorkerType {
	return schedulerFor(ctx).CurrentThreadType(ctx)
}

// GetHardwareThreadsCount returns the default pool size.
func GetHardwareThreadsCount() int {
	return core.GetHardwareThreadsCount()
}

// schedulerFor returns the scheduler owning the worker bound to ctx, so contexts
// of a scheduler that was replaced by CreateScheduler keep reaching their own
// pool. Unbound contexts fall back to the global scheduler, which rejects them.
func schedulerFor(ctx context.Context) *core.Scheduler {
	if s := core.SchedulerFromContext(ctx); s != nil {
		return s
	}
	return GlobalScheduler()
}
