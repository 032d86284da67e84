package core

import (
	"errors"
	"testing"
)

// TestStatus_PendingCounting verifies the pending counter
// Given: a fresh Status
// When: three tasks register and two complete
// Then: it stays busy until the last one completes
func TestStatus_PendingCounting(t *testing.T) {
	st := NewStatus()
	if st.IsBusy() {
		t.Fatal("IsBusy() = true for a fresh status, want false")
	}

	st.setBusy(true)
	st.setBusy(true)
	st.setBusy(true)
	st.setBusy(false)
	st.setBusy(false)
	if got := st.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	if !st.IsBusy() {
		t.Fatal("IsBusy() = false with one task pending, want true")
	}

	st.setBusy(false)
	if st.IsBusy() {
		t.Fatal("IsBusy() = true after all tasks completed, want false")
	}
}

// TestStatus_UnderflowPanics verifies an unbalanced decrement is caught
func TestStatus_UnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("setBusy(false) on idle status did not panic")
		}
	}()
	NewStatus().setBusy(false)
}

// TestStatus_ErrorsAndReset verifies error aggregation and reuse
// Given: a status with two recorded errors
// When: Err, Errors and Reset are called
// Then: errors are joined, Reset refuses while busy and clears when idle
func TestStatus_ErrorsAndReset(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	st := NewStatus()
	st.setBusy(true)
	st.recordError(errA)
	st.recordError(nil)
	st.recordError(errB)

	if err := st.Err(); !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Err() = %v, want both errors joined", err)
	}
	if got := len(st.Errors()); got != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", got)
	}
	if st.Reset() {
		t.Fatal("Reset() = true while busy, want false")
	}

	st.setBusy(false)
	if !st.Reset() {
		t.Fatal("Reset() = false when idle, want true")
	}
	if st.Err() != nil {
		t.Fatalf("Err() after Reset = %v, want nil", st.Err())
	}
}
