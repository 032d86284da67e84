package core

import (
	"errors"
	"testing"
)

// TestTask_NameAndStatus verifies task accessors
// Given: a named and an anonymous task created by a scheduler
// When: Name, displayName and Status are read
// Then: the name, the fallback display name and the owning status are returned
func TestTask_NameAndStatus(t *testing.T) {
	// Arrange
	s := NewScheduler(nil)
	status := NewStatus()

	// Act
	named := s.NewNamedTask("integrate", status, noopTask)
	anon := s.NewTask(status, noopTask)

	// Assert
	if named.Name() != "integrate" || named.displayName() != "integrate" {
		t.Fatalf("named task = %q/%q, want integrate", named.Name(), named.displayName())
	}
	if anon.Name() != "" || anon.displayName() != "anonymous" {
		t.Fatalf("anonymous task = %q/%q, want \"\"/anonymous", anon.Name(), anon.displayName())
	}
	if named.Status() != status {
		t.Fatal("Status() does not return the creating status")
	}
	if got := status.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	ctx := s.MainContext(nil)
	_ = s.AddTask(ctx, named)
	_ = s.AddTask(ctx, anon)
	_ = s.WorkUntilDone(ctx, status)
}

// TestTask_ReleasedAfterRun verifies tasks are returned to their allocator
// Given: a task posted on a single-threaded scheduler
// When: it runs
// Then: its fields are cleared
func TestTask_ReleasedAfterRun(t *testing.T) {
	s := NewScheduler(nil)
	ctx := s.MainContext(nil)
	status := NewStatus()

	task := s.NewNamedTask("once", status, noopTask)
	if err := s.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	_ = s.WorkUntilDone(ctx, status)

	if task.fn != nil || task.status != nil || task.name != "" || task.alloc != nil {
		t.Fatalf("task not reset after run: %+v", task)
	}
}

// TestTask_NilFuncIsRejected verifies AddTask refuses a task without a body
// Given: a task created with a nil function
// When: AddTask is called
// Then: ErrNilTask is returned and the status is released with the error recorded
func TestTask_NilFuncIsRejected(t *testing.T) {
	s := NewScheduler(&SchedulerConfig{RejectedTaskHandler: NewTestRejectedTaskHandler()})
	status := NewStatus()

	err := s.AddTask(s.MainContext(nil), s.NewTask(status, nil))

	if !errors.Is(err, ErrNilTask) {
		t.Fatalf("AddTask() error = %v, want ErrNilTask", err)
	}
	if status.IsBusy() {
		t.Fatal("status still busy after rejection")
	}
	if !errors.Is(status.Err(), ErrNilTask) {
		t.Fatalf("status.Err() = %v, want ErrNilTask", status.Err())
	}
}
