package core

import "runtime"

// GetHardwareThreadsCount returns the default pool size: the number of
// physical cores, estimated as half the logical CPUs since hyperthreads bring no
// gain for this workload. It never returns less than 1.
func GetHardwareThreadsCount() int {
	return max(1, runtime.NumCPU()/2)
}

// effectiveThreadCount resolves a requested pool size, where 0 or less means
// GetHardwareThreadsCount.
func effectiveThreadCount(n int) int {
	if n <= 0 {
		return GetHardwareThreadsCount()
	}
	return n
}
