// Package animation drives a set of simulated components one timestep at a
// time, running every component of a step as its own task on a scheduler.
package animation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	simtask "github.com/fyh275905/sofa-sub006"
	"github.com/fyh275905/sofa-sub006/core"
	"github.com/fyh275905/sofa-sub006/tracing"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotInitialized is returned by Step before Init or after Cleanup.
var ErrNotInitialized = errors.New("animation: loop not initialized")

// Animatable is one independently steppable component. Step runs on a
// scheduler worker; ctx is bound to that worker so the component may fan out
// further work with core.SpawnChild or core.ForEachRange.
type Animatable interface {
	Name() string
	Step(ctx context.Context, dt float64) error
}

// DataExchangeEvent is published after every step, once all components have
// finished and the loop time has advanced.
type DataExchangeEvent struct {
	Step uint64
	Time float64
	Dt   float64
}

// DataExchangeFunc receives DataExchangeEvents on the goroutine calling Step.
type DataExchangeFunc func(ctx context.Context, ev DataExchangeEvent)

// StepReport summarizes one call to Step.
type StepReport struct {
	ID       ulid.ULID
	Index    uint64
	Time     float64 // loop time after the step
	Dt       float64
	Tasks    int
	Duration time.Duration
	Err      error
}

// Options configure a ParallelLoop.
type Options struct {
	// Scheduler runs the steps. When nil, Init uses the global scheduler,
	// switching it to the SchedulerName factory first when that is set.
	Scheduler *core.Scheduler

	// SchedulerName selects a registered scheduler factory.
	SchedulerName string

	// Threads is the worker count passed to Init; 0 selects the hardware count.
	Threads int

	// DefaultDt is used when Step receives dt == 0.
	DefaultDt float64

	// Logger defaults to the scheduler's logger.
	Logger core.Logger
}

// ParallelLoop advances its children in parallel, one task per child per step.
// Step, Init, Reinit and Cleanup must be called from one driving goroutine.
type ParallelLoop struct {
	opts   Options
	sched  *core.Scheduler
	logger core.Logger

	mu        sync.Mutex
	children  []Animatable
	listeners []DataExchangeFunc

	initialized bool
	time        float64
	steps       uint64
}

// NewParallelLoop returns a loop that is not yet initialized.
func NewParallelLoop(opts Options) *ParallelLoop {
	return &ParallelLoop{opts: opts}
}

// Add appends children to the loop.
func (l *ParallelLoop) Add(children ...Animatable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range children {
		if c != nil {
			l.children = append(l.children, c)
		}
	}
}

// OnDataExchange registers fn for the post-step event.
func (l *ParallelLoop) OnDataExchange(fn DataExchangeFunc) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Init resolves the scheduler and starts it with the configured thread count.
func (l *ParallelLoop) Init() error {
	sched := l.opts.Scheduler
	if sched == nil {
		name := l.opts.SchedulerName
		if name != "" && name != simtask.CurrentName() {
			var err error
			if sched, err = simtask.CreateScheduler(name); err != nil {
				return err
			}
		} else {
			sched = simtask.GlobalScheduler()
		}
	}
	if err := sched.Init(l.opts.Threads); err != nil {
		return fmt.Errorf("animation: init scheduler: %w", err)
	}

	l.sched = sched
	l.logger = l.opts.Logger
	if l.logger == nil {
		l.logger = sched.Logger()
	}
	l.initialized = true
	l.logger.Info("animation loop initialized",
		core.F("scheduler", sched.Name()), core.F("threads", sched.ThreadCount()))
	return nil
}

// Reinit restarts the scheduler when threads differs from the running count.
func (l *ParallelLoop) Reinit(threads int) error {
	if !l.initialized {
		return ErrNotInitialized
	}
	l.opts.Threads = threads
	return l.sched.Init(threads)
}

// Cleanup stops the scheduler. Step fails until Init is called again.
func (l *ParallelLoop) Cleanup() {
	if !l.initialized {
		return
	}
	l.sched.Stop()
	l.initialized = false
}

// Scheduler returns the scheduler resolved by Init, or nil before it.
func (l *ParallelLoop) Scheduler() *core.Scheduler { return l.sched }

// Time returns the accumulated simulation time.
func (l *ParallelLoop) Time() float64 { return l.time }

// Step advances every child by dt (DefaultDt when dt is 0) and waits for all
// of them. Component errors do not stop the step; they are joined into
// StepReport.Err and returned. Time advances even when a component failed.
func (l *ParallelLoop) Step(ctx context.Context, dt float64) (StepReport, error) {
	if !l.initialized {
		return StepReport{}, ErrNotInitialized
	}
	if dt == 0 {
		dt = l.opts.DefaultDt
	}

	l.mu.Lock()
	children := append([]Animatable(nil), l.children...)
	listeners := append([]DataExchangeFunc(nil), l.listeners...)
	l.mu.Unlock()

	report := StepReport{
		ID:    ulid.Make(),
		Index: l.steps,
		Dt:    dt,
	}
	ctx, span := tracing.StartSpan(ctx, "animation.step",
		attribute.String("step.id", report.ID.String()),
		attribute.Int64("step.index", int64(report.Index)),
		attribute.Float64("step.dt", dt),
		attribute.Int("step.children", len(children)),
	)

	start := time.Now()
	mainCtx := l.sched.MainContext(ctx)
	status := core.NewStatus()
	var submitErr error
	for _, child := range children {
		child := child
		err := l.sched.SubmitNamed(mainCtx, child.Name(), status, func(ctx context.Context) error {
			return child.Step(ctx, dt)
		})
		if err != nil {
			submitErr = err
			break
		}
		report.Tasks++
	}
	if err := l.sched.WorkUntilDone(mainCtx, status); err != nil && submitErr == nil {
		submitErr = err
	}
	report.Duration = time.Since(start)

	if submitErr != nil {
		report.Err = submitErr
		tracing.EndSpan(span, submitErr)
		return report, fmt.Errorf("animation: step %d: %w", report.Index, submitErr)
	}

	l.time += dt
	l.steps++
	report.Time = l.time
	report.Err = status.Err()

	ev := DataExchangeEvent{Step: report.Index, Time: l.time, Dt: dt}
	for _, fn := range listeners {
		fn(ctx, ev)
	}
	span.AddEvent("data-exchange", attribute.Float64("time", l.time))

	if report.Err != nil {
		l.logger.Warn("animation step failed",
			core.F("step", report.Index), core.F("id", report.ID.String()), core.F("error", report.Err))
	} else {
		l.logger.Debug("animation step done",
			core.F("step", report.Index), core.F("tasks", report.Tasks), core.F("duration", report.Duration))
	}
	tracing.EndSpan(span, report.Err)
	return report, report.Err
}
