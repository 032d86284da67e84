//go:build !linux

package core

import "runtime"

// bindOSThread locks the calling goroutine to its OS thread. Thread ids and CPU
// pinning are only available on Linux.
func bindOSThread(pin bool, cpuHint int) (int, error) {
	runtime.LockOSThread()
	return 0, nil
}

func currentOSThreadID() int {
	return 0
}
