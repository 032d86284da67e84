package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/fyh275905/sofa-sub006/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	schedulerThreads     *prom.GaugeVec
	schedulerInitialized *prom.GaugeVec
	schedulerQueued      *prom.GaugeVec
	schedulerIdle        *prom.GaugeVec

	workerQueued   *prom.GaugeVec
	workerExecuted *prom.GaugeVec
	workerStolen   *prom.GaugeVec
	workerState    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	schedulerThreads := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "scheduler_threads",
		Help:      "Number of workers per scheduler, main worker included.",
	}, []string{"scheduler"})
	schedulerInitialized := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "scheduler_initialized",
		Help:      "Scheduler pool state (1=running, 0=main worker only).",
	}, []string{"scheduler"})
	schedulerQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "scheduler_queued",
		Help:      "Queued tasks over all workers of a scheduler.",
	}, []string{"scheduler"})
	schedulerIdle := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "scheduler_workers_idle",
		Help:      "Whether any pool worker is parked on the idle gate (1=yes).",
	}, []string{"scheduler"})

	workerQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "worker_queued",
		Help:      "Queued tasks per worker deque.",
	}, []string{"scheduler", "worker"})
	workerExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "worker_executed",
		Help:      "Worker executed task count snapshot.",
	}, []string{"scheduler", "worker"})
	workerStolen := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "worker_stolen",
		Help:      "Worker stolen task count snapshot.",
	}, []string{"scheduler", "worker"})
	workerState := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "simtask",
		Name:      "worker_state",
		Help:      "Current worker loop state (1 for the active state label).",
	}, []string{"scheduler", "worker", "state"})

	var err error
	if schedulerThreads, err = registerCollector(reg, schedulerThreads); err != nil {
		return nil, err
	}
	if schedulerInitialized, err = registerCollector(reg, schedulerInitialized); err != nil {
		return nil, err
	}
	if schedulerQueued, err = registerCollector(reg, schedulerQueued); err != nil {
		return nil, err
	}
	if schedulerIdle, err = registerCollector(reg, schedulerIdle); err != nil {
		return nil, err
	}
	if workerQueued, err = registerCollector(reg, workerQueued); err != nil {
		return nil, err
	}
	if workerExecuted, err = registerCollector(reg, workerExecuted); err != nil {
		return nil, err
	}
	if workerStolen, err = registerCollector(reg, workerStolen); err != nil {
		return nil, err
	}
	if workerState, err = registerCollector(reg, workerState); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:             interval,
		schedulers:           make(map[string]SchedulerSnapshotProvider),
		schedulerThreads:     schedulerThreads,
		schedulerInitialized: schedulerInitialized,
		schedulerQueued:      schedulerQueued,
		schedulerIdle:        schedulerIdle,
		workerQueued:         workerQueued,
		workerExecuted:       workerExecuted,
		workerStolen:         workerStolen,
		workerState:          workerState,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedulersMu.RLock()
	defer p.schedulersMu.RUnlock()

	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.schedulerThreads.WithLabelValues(name).Set(float64(stats.ThreadCount))
		p.schedulerInitialized.WithLabelValues(name).Set(boolGauge(stats.Initialized))
		p.schedulerQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.schedulerIdle.WithLabelValues(name).Set(boolGauge(stats.WorkersIdle))

		// Workers come and go with Start/Stop; drop series of workers that no
		// longer exist before writing the current set.
		match := prom.Labels{"scheduler": name}
		p.workerQueued.DeletePartialMatch(match)
		p.workerExecuted.DeletePartialMatch(match)
		p.workerStolen.DeletePartialMatch(match)
		p.workerState.DeletePartialMatch(match)

		for _, w := range stats.Workers {
			worker := workerLabel(w)
			p.workerQueued.WithLabelValues(name, worker).Set(float64(w.Queued))
			p.workerExecuted.WithLabelValues(name, worker).Set(float64(w.Executed))
			p.workerStolen.WithLabelValues(name, worker).Set(float64(w.Stolen))
			p.workerState.WithLabelValues(name, worker, w.State.String()).Set(1)
		}
	}
}

func workerLabel(w core.WorkerStats) string {
	if w.Name != "" {
		return w.Name
	}
	return "worker-" + strconv.Itoa(w.Index)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
