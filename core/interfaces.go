package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// The panic is also recorded on the task's Status as a *PanicError, so the
// handler is for side effects only (logging, crash reporting).
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked task (carries its worker and status)
	// - schedulerName: The name of the scheduler running the task
	// - workerID: The index of the worker (0 is the main worker)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, schedulerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, schedulerName string, workerID int, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
		workerID, schedulerName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called from the worker hot loop; they must be non-blocking and fast.
// Task durations are only measured when a Metrics other than NilMetrics is set.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute on a worker.
	RecordTaskDuration(schedulerName string, workerName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(schedulerName string, panicInfo any)

	// RecordTaskFailure records that a task returned an error.
	RecordTaskFailure(schedulerName string)

	// RecordTaskStolen records a successful steal by the named worker.
	RecordTaskStolen(schedulerName string, workerName string)

	// RecordIdleWait records that a pool worker blocked waiting for work.
	RecordIdleWait(schedulerName string, workerName string)

	// RecordTaskRejected records that a task was rejected.
	//
	// Parameters:
	// - schedulerName: The name of the scheduler
	// - reason: Why the task was rejected ("unknown worker", "shutting down")
	RecordTaskRejected(schedulerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(schedulerName string, workerName string, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskPanic(schedulerName string, panicInfo any)        {}
func (m *NilMetrics) RecordTaskFailure(schedulerName string)                     {}
func (m *NilMetrics) RecordTaskStolen(schedulerName string, workerName string)   {}
func (m *NilMetrics) RecordIdleWait(schedulerName string, workerName string)     {}
func (m *NilMetrics) RecordTaskRejected(schedulerName string, reason string)     {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when the scheduler refuses a task. This happens
// when:
// - The posting context is not bound to a registered worker
// - The scheduler is shutting down
//
// A rejected task never runs, but its Status is still released so waiters do not
// hang. Implementations should be thread-safe.
type RejectedTaskHandler interface {
	HandleRejectedTask(schedulerName string, taskName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected tasks.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(schedulerName string, taskName string, reason string) {
	fmt.Printf("[Scheduler %s] Task %q rejected: %s\n", schedulerName, taskName, reason)
}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

const (
	defaultSpinCount   = 64
	defaultStealRounds = 2
	defaultWaitBackoff = 20 * time.Microsecond
)

// SchedulerConfig holds configuration options for Scheduler.
// Handlers are optional; nil fields fall back to the defaults.
type SchedulerConfig struct {
	// Name identifies the scheduler in logs and metrics. Defaults to "default".
	Name string

	// SpinCount is how many empty loop rounds a worker yields the processor before
	// it blocks on the idle gate (pool workers) or starts sleeping WaitBackoff
	// between checks (a goroutine inside WorkUntilDone).
	SpinCount int

	// StealRounds bounds how many full scans over the peers a worker makes per
	// steal attempt.
	StealRounds int

	// WaitBackoff is the sleep between checks of a goroutine waiting in
	// WorkUntilDone once SpinCount empty rounds passed. 0 means yield only.
	WaitBackoff time.Duration

	// PinThreads pins each pool worker's OS thread to one CPU (Linux only).
	PinThreads bool

	// Allocator provides Task storage. Defaults to HeapAllocator.
	Allocator Allocator

	// Logger receives lifecycle and failure logs. Defaults to NoOpLogger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record scheduler metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultSchedulerConfig returns a config with default handlers and tuning.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Name:                "default",
		SpinCount:           defaultSpinCount,
		StealRounds:         defaultStealRounds,
		WaitBackoff:         defaultWaitBackoff,
		Allocator:           HeapAllocator{},
		Logger:              NewNoOpLogger(),
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}

// withDefaults returns a copy of c where every unset field holds its default.
func (c *SchedulerConfig) withDefaults() SchedulerConfig {
	def := DefaultSchedulerConfig()
	if c == nil {
		return *def
	}
	out := *c
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.SpinCount < 0 {
		out.SpinCount = 0
	}
	if out.StealRounds < 1 {
		out.StealRounds = def.StealRounds
	}
	if out.WaitBackoff < 0 {
		out.WaitBackoff = 0
	}
	if out.Allocator == nil {
		out.Allocator = def.Allocator
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.PanicHandler == nil {
		out.PanicHandler = def.PanicHandler
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = def.RejectedTaskHandler
	}
	return out
}
