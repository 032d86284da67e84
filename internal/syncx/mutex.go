//go:build !deadlock

// Package syncx selects the mutex implementation used by the scheduler's
// per-worker deques. Building with the deadlock tag swaps in go-deadlock's
// instrumented mutex, which reports lock-order inversions and long waits.
package syncx

import "sync"

// Mutex is sync.Mutex in regular builds.
type Mutex = sync.Mutex

// Instrumented reports whether lock diagnostics are compiled in.
const Instrumented = false
