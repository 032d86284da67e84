package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/fyh275905/sofa-sub006/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type schedulerStub struct {
	stats core.SchedulerStats
}

func (s schedulerStub) Stats() core.SchedulerStats { return s.stats }

func TestSnapshotPoller_CollectsSchedulerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddScheduler("sched-a", schedulerStub{stats: core.SchedulerStats{
		ThreadCount: 3,
		Initialized: true,
		Queued:      5,
		Workers: []core.WorkerStats{
			{Index: 0, Name: "Main", Queued: 2, Executed: 10, State: core.WorkerStateRunning},
			{Index: 1, Name: "Worker 1", Queued: 3, Executed: 7, Stolen: 4, State: core.WorkerStateIdle},
			{Index: 2, Queued: 0, State: core.WorkerStateStealing},
		},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)

	assertEventually(t, 2*time.Second, func() bool {
		threads := testutil.ToFloat64(poller.schedulerThreads.WithLabelValues("sched-a"))
		queued := testutil.ToFloat64(poller.workerQueued.WithLabelValues("sched-a", "Worker 1"))
		return threads == 3 && queued == 3
	})
	// Worker series are rewritten on every poll; stop to read a settled snapshot.
	poller.Stop()

	if got := testutil.ToFloat64(poller.schedulerInitialized.WithLabelValues("sched-a")); got != 1 {
		t.Fatalf("initialized gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.workerStolen.WithLabelValues("sched-a", "Worker 1")); got != 4 {
		t.Fatalf("worker stolen gauge = %v, want 4", got)
	}
	if got := testutil.ToFloat64(poller.workerState.WithLabelValues("sched-a", "worker-2", "stealing")); got != 1 {
		t.Fatalf("worker state gauge = %v, want 1", got)
	}
}

func TestSnapshotPoller_DropsVanishedWorkers(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	s := core.NewScheduler(&core.SchedulerConfig{Name: "live"})
	if err := s.Start(4); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	poller.AddScheduler("live", s)
	poller.collectOnce()

	if got := testutil.CollectAndCount(poller.workerQueued); got != 4 {
		t.Fatalf("worker series = %d, want 4", got)
	}

	s.Stop()
	poller.collectOnce()

	if got := testutil.CollectAndCount(poller.workerQueued); got != 1 {
		t.Fatalf("worker series after Stop = %d, want 1", got)
	}
	if got := testutil.ToFloat64(poller.schedulerThreads.WithLabelValues("live")); got != 1 {
		t.Fatalf("threads gauge after Stop = %v, want 1", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
