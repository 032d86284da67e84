package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownWorker is returned when the calling context is not bound to a
	// worker registered with the scheduler.
	ErrUnknownWorker = errors.New("simtask: calling context is not a registered worker")

	// ErrSchedulerClosing is returned when work is posted while Stop is running.
	ErrSchedulerClosing = errors.New("simtask: scheduler is shutting down")

	// ErrNilTask is returned when a nil task or task function is posted.
	ErrNilTask = errors.New("simtask: nil task")

	// ErrNilStatus is returned when a task is created without a completion status.
	ErrNilStatus = errors.New("simtask: nil status")

	// ErrUnknownAllocator is returned by NewAllocator for an unsupported kind.
	ErrUnknownAllocator = errors.New("simtask: unknown allocator kind")

	errTaskExited = errors.New("task goroutine exited before returning")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Task   string
	Worker string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked on %s: %v", e.Task, e.Worker, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TaskError records an error returned by a task function.
type TaskError struct {
	Task   string
	Worker string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed on %s: %v", e.Task, e.Worker, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
