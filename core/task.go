package core

import (
	"context"
)

// TaskFunc is the payload of a Task.
//
// The context carries the Worker executing the task and the task's Status, so
// the function can fan out with SpawnChild or wait on a nested Status with
// WorkUntilDone without any extra handle passing.
type TaskFunc func(ctx context.Context) error

// Task is one schedulable unit of work bound to its completion Status.
//
// Tasks are created through Scheduler.NewTask, which takes storage from the
// scheduler's Allocator and registers the task on its Status. A task is immutable
// once posted, runs exactly once on exactly one Worker and is then returned to the
// Allocator that produced it. Tasks never own other tasks: graphs are expressed by
// tasks spawning further tasks while they run.
type Task struct {
	fn     TaskFunc
	status *Status
	name   string
	alloc  Allocator
}

// Status returns the completion status the task reports to.
func (t *Task) Status() *Status {
	return t.status
}

// Name returns the display name of the task, which may be empty.
func (t *Task) Name() string {
	return t.name
}

func (t *Task) displayName() string {
	if t.name == "" {
		return "anonymous"
	}
	return t.name
}

func (t *Task) reset() {
	t.fn = nil
	t.status = nil
	t.name = ""
	t.alloc = nil
}

// =============================================================================
// Context Helper
// =============================================================================

type workerKeyType struct{}
type statusKeyType struct{}

var (
	workerKey workerKeyType
	statusKey statusKeyType
)

func withWorker(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey, w)
}

// WorkerFromContext returns the Worker bound to ctx, or nil.
func WorkerFromContext(ctx context.Context) *Worker {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(workerKey); v != nil {
		return v.(*Worker)
	}
	return nil
}

// StatusFromContext returns the Status of the task running under ctx, or nil
// when ctx does not belong to a running task.
func StatusFromContext(ctx context.Context) *Status {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(statusKey); v != nil {
		return v.(*Status)
	}
	return nil
}

// SchedulerFromContext returns the scheduler owning the worker bound to ctx.
func SchedulerFromContext(ctx context.Context) *Scheduler {
	if w := WorkerFromContext(ctx); w != nil {
		return w.sched
	}
	return nil
}

// SpawnChild posts fn under the Status of the currently running task, on the
// worker executing it.
func SpawnChild(ctx context.Context, fn TaskFunc) error {
	w := WorkerFromContext(ctx)
	if w == nil {
		return ErrUnknownWorker
	}
	status := StatusFromContext(ctx)
	if status == nil {
		return ErrNilStatus
	}
	return w.sched.Spawn(ctx, status, fn)
}
