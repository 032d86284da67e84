//go:build linux

package core

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// bindOSThread locks the calling goroutine to its OS thread and returns the
// kernel thread id. With pin set the thread is restricted to one CPU chosen
// from cpuHint.
func bindOSThread(pin bool, cpuHint int) (int, error) {
	runtime.LockOSThread()
	tid := unix.Gettid()
	if !pin {
		return tid, nil
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(cpuHint % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return tid, err
	}
	return tid, nil
}

func currentOSThreadID() int {
	return unix.Gettid()
}
