package main

import (
	"context"
	"errors"
	"sync"

	simtask "github.com/fyh275905/sofa-sub006"
	"github.com/fyh275905/sofa-sub006/config"
	"github.com/fyh275905/sofa-sub006/core"
	"github.com/fyh275905/sofa-sub006/internal/diag"
	"github.com/fyh275905/sofa-sub006/logging"
	promexp "github.com/fyh275905/sofa-sub006/observability/prometheus"
	"github.com/fyh275905/sofa-sub006/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

// configuredFactory is the scheduler factory built from the loaded config.
const configuredFactory = "configured"

var (
	activeMu     sync.Mutex
	active       *runtime
	registerOnce sync.Once
)

// runtime holds everything a command needs besides the scheduler itself.
type runtime struct {
	cfg      *config.Config
	logger   core.Logger
	exporter *promexp.MetricsExporter
	poller   *promexp.SnapshotPoller
	diag     *diag.Server
	tracer   *tracing.Provider
	cancel   context.CancelFunc
}

// setup loads the config, applies global flags and starts the optional
// diagnostics server and tracer. The caller must call close.
func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.IsSet("trace-file") {
		cfg.Tracing.File = c.String("trace-file")
	}
	if c.IsSet("threads") {
		cfg.Scheduler.Threads = c.Int("threads")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Prefix:    cfg.Log.Prefix,
		Timestamp: cfg.Log.Timestamp,
	}, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	exporter, err := promexp.NewMetricsExporter(cfg.Metrics.Namespace, reg, promexp.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	poller, err := promexp.NewSnapshotPoller(reg, cfg.Metrics.PollInterval.Duration)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(c.Context)
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		exporter: exporter,
		poller:   poller,
		cancel:   cancel,
	}

	if cfg.Tracing.File != "" {
		if rt.tracer, err = tracing.Init(cfg.Tracing.ServiceName, version, cfg.Tracing.File); err != nil {
			rt.close()
			return nil, err
		}
	}
	if cfg.Metrics.Addr != "" {
		rt.diag = diag.NewServer(reg, logger)
		if _, err := rt.diag.Start(cfg.Metrics.Addr); err != nil {
			rt.close()
			return nil, err
		}
		poller.Start(ctx)
	}

	activeMu.Lock()
	active = rt
	activeMu.Unlock()
	registerOnce.Do(func() {
		simtask.RegisterFactory(configuredFactory, func() *core.Scheduler {
			activeMu.Lock()
			defer activeMu.Unlock()
			return active.newScheduler()
		})
	})
	return rt, nil
}

// newScheduler builds a scheduler from the config and registers it with the
// metrics poller and the diagnostics server.
func (rt *runtime) newScheduler() *core.Scheduler {
	schedCfg, err := rt.cfg.SchedulerConfig(rt.logger, rt.exporter)
	if err != nil {
		// Validate already checked the allocator kind.
		panic(err)
	}
	s := core.NewScheduler(schedCfg)
	rt.poller.AddScheduler(s.Name(), s)
	if rt.diag != nil {
		rt.diag.AddScheduler(s.Name(), s)
	}
	return s
}

// scheduler makes the configured scheduler the global one and starts it.
func (rt *runtime) scheduler() (*core.Scheduler, error) {
	s, err := simtask.CreateScheduler(configuredFactory)
	if err != nil {
		return nil, err
	}
	if err := s.Init(rt.cfg.Scheduler.Threads); err != nil {
		// Pinning failures leave a running, unpinned pool.
		rt.logger.Warn("scheduler init", core.F("error", err))
	}
	return s, nil
}

// close stops the configured scheduler by switching the global instance back
// to the default factory, then tears down the diagnostics stack.
func (rt *runtime) close() error {
	if simtask.CurrentName() == configuredFactory {
		_, _ = simtask.CreateScheduler(simtask.DefaultSchedulerName)
	}
	rt.cancel()
	rt.poller.Stop()

	var errs []error
	if rt.diag != nil {
		errs = append(errs, rt.diag.Shutdown(context.Background()))
	}
	errs = append(errs, rt.tracer.Shutdown(context.Background()))
	return errors.Join(errs...)
}
