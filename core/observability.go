package core

// WorkerState is the coarse state of a worker's execution loop.
type WorkerState int32

const (
	WorkerStateIdle WorkerState = iota
	WorkerStateRunning
	WorkerStateStealing
	WorkerStateFinished
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStealing:
		return "stealing"
	case WorkerStateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// WorkerStats represents runtime observability state for one worker.
type WorkerStats struct {
	Index       int
	Name        string
	Type        WorkerType
	OSThreadID  int
	State       WorkerState
	Queued      int
	Executed    uint64
	Stolen      uint64
	StealMisses uint64
	IdleWaits   uint64
	Failed      uint64
	Panicked    uint64
}

// SchedulerStats represents runtime observability state for a scheduler.
type SchedulerStats struct {
	ID                string
	Name              string
	ThreadCount       int
	WorkerThreadCount int
	Initialized       bool
	Closing           bool
	WorkersIdle       bool
	Queued            int
	Workers           []WorkerStats
}

// Executed returns the total number of tasks run by all workers.
func (s SchedulerStats) Executed() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Executed
	}
	return n
}

// Stolen returns the total number of successful steals.
func (s SchedulerStats) Stolen() uint64 {
	var n uint64
	for _, w := range s.Workers {
		n += w.Stolen
	}
	return n
}
