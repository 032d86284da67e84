//go:build deadlock

package syncx

import "github.com/sasha-s/go-deadlock"

// Mutex is deadlock.Mutex when built with the deadlock tag.
type Mutex = deadlock.Mutex

// Instrumented reports whether lock diagnostics are compiled in.
const Instrumented = true
