package simtask

import "github.com/fyh275905/sofa-sub006/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the simtask package for most use cases.

// Task is one schedulable unit of work bound to its Status
type Task = core.Task

// TaskFunc is the payload of a Task
type TaskFunc = core.TaskFunc

// Status counts the unfinished tasks of a submitted subgraph
type Status = core.Status

// Scheduler owns the worker pool
type Scheduler = core.Scheduler

// SchedulerConfig configures a Scheduler
type SchedulerConfig = core.SchedulerConfig

// Worker is a per-thread execution context
type Worker = core.Worker

// WorkerType distinguishes the main worker from pool workers
type WorkerType = core.WorkerType

// Allocator provides Task storage
type Allocator = core.Allocator

// SchedulerStats is a diagnostics snapshot of a Scheduler
type SchedulerStats = core.SchedulerStats

// Logger is the structured logging interface used by the scheduler
type Logger = core.Logger

const (
	WorkerTypeUnknown = core.WorkerTypeUnknown
	WorkerTypeMain    = core.WorkerTypeMain
	WorkerTypePool    = core.WorkerTypePool
)

// NewStatus returns an idle Status.
func NewStatus() *Status {
	return core.NewStatus()
}
