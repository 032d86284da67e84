package simtask

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/fyh275905/sofa-sub006/core"
)

// TestGlobalScheduler_LazyDefault verifies the singleton is created on demand
// Given: no explicit CreateScheduler call
// When: GlobalScheduler is called twice
// Then: the same default scheduler is returned
func TestGlobalScheduler_LazyDefault(t *testing.T) {
	s1 := GlobalScheduler()
	s2 := GlobalScheduler()
	if s1 != s2 {
		t.Fatal("GlobalScheduler() returned different instances")
	}
	if CurrentName() == "" {
		t.Fatal("CurrentName() = \"\" after GlobalScheduler()")
	}
}

// TestGlobal_SubmitAndWait verifies the package-level facade end to end
// Given: the global scheduler started with 3 workers
// When: 100 roots each spawn 10 children
// Then: every task runs and the status is idle
func TestGlobal_SubmitAndWait(t *testing.T) {
	if err := Init(3); err != nil {
		t.Fatalf("Init(3) error = %v", err)
	}
	defer Stop()

	ctx := MainContext()
	var ran atomic.Int64
	status := NewStatus()
	for i := 0; i < 100; i++ {
		err := Submit(ctx, status, func(ctx context.Context) error {
			for j := 0; j < 10; j++ {
				if err := Spawn(ctx, status, func(ctx context.Context) error {
					ran.Add(1)
					return nil
				}); err != nil {
					return err
				}
			}
			ran.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	if err := WorkUntilDone(ctx, status); err != nil {
		t.Fatalf("WorkUntilDone() error = %v", err)
	}

	if got := ran.Load(); got != 1100 {
		t.Fatalf("ran = %d, want 1100", got)
	}
	if GlobalScheduler().ThreadCount() != 3 {
		t.Fatalf("ThreadCount() = %d, want 3", GlobalScheduler().ThreadCount())
	}
}

// TestGlobal_AddTaskAndNames verifies task creation and diagnostics helpers
func TestGlobal_AddTaskAndNames(t *testing.T) {
	if err := Start(1); err != nil {
		t.Fatalf("Start(1) error = %v", err)
	}
	defer Stop()

	ctx := MainContext()
	status := NewStatus()
	var ran atomic.Bool
	task := NewTask(status, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	if !status.IsBusy() {
		t.Fatal("IsBusy() = false after NewTask, want true")
	}
	if err := AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	_ = WorkUntilDone(ctx, status)
	if !ran.Load() {
		t.Fatal("task did not run")
	}

	if got := GetCurrentThreadName(ctx); got != "Main" {
		t.Fatalf("GetCurrentThreadName() = %q, want Main", got)
	}
	if got := GetCurrentThreadType(ctx); got != WorkerTypeMain {
		t.Fatalf("GetCurrentThreadType() = %v, want main", got)
	}
	if GetHardwareThreadsCount() < 1 {
		t.Fatal("GetHardwareThreadsCount() < 1")
	}

	err := Submit(context.Background(), NewStatus(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, core.ErrUnknownWorker) {
		t.Fatalf("Submit(background) error = %v, want ErrUnknownWorker", err)
	}
}
