package animation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	simtask "github.com/fyh275905/sofa-sub006"
	"github.com/fyh275905/sofa-sub006/core"
	"github.com/fyh275905/sofa-sub006/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recorder struct {
	name  string
	err   error
	steps atomic.Int32

	mu      sync.Mutex
	dts     []float64
	workers []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Step(ctx context.Context, dt float64) error {
	r.steps.Add(1)
	r.mu.Lock()
	r.dts = append(r.dts, dt)
	r.workers = append(r.workers, core.WorkerFromContext(ctx).Name())
	r.mu.Unlock()
	return r.err
}

func newLoop(t *testing.T, threads int, children ...Animatable) *ParallelLoop {
	t.Helper()
	s := core.NewScheduler(&core.SchedulerConfig{Name: t.Name()})
	loop := NewParallelLoop(Options{Scheduler: s, Threads: threads, DefaultDt: 0.01})
	loop.Add(children...)
	require.NoError(t, loop.Init())
	t.Cleanup(loop.Cleanup)
	return loop
}

func TestParallelLoop_StepRunsEveryChildOnce(t *testing.T) {
	children := make([]*recorder, 16)
	items := make([]Animatable, len(children))
	for i := range children {
		children[i] = &recorder{name: "child"}
		items[i] = children[i]
	}
	loop := newLoop(t, 4, items...)

	var events []DataExchangeEvent
	loop.OnDataExchange(func(ctx context.Context, ev DataExchangeEvent) {
		events = append(events, ev)
	})

	for i := 0; i < 3; i++ {
		report, err := loop.Step(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), report.Index)
		assert.Equal(t, 16, report.Tasks)
		assert.Equal(t, 0.01, report.Dt)
		assert.NotZero(t, report.ID)
	}

	for _, c := range children {
		assert.EqualValues(t, 3, c.steps.Load())
		assert.Equal(t, []float64{0.01, 0.01, 0.01}, c.dts)
	}
	assert.InDelta(t, 0.03, loop.Time(), 1e-12)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(2), events[2].Step)
	assert.InDelta(t, 0.03, events[2].Time, 1e-12)
}

func TestParallelLoop_ExplicitDt(t *testing.T) {
	r := &recorder{name: "only"}
	loop := newLoop(t, 2, r)

	report, err := loop.Step(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, report.Time)
	assert.Equal(t, []float64{0.5}, r.dts)
}

func TestParallelLoop_ChildErrorsAreJoined(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ok := &recorder{name: "ok"}
	loop := newLoop(t, 2, &recorder{name: "a", err: errA}, ok, &recorder{name: "b", err: errB})

	report, err := loop.Step(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, err, report.Err)
	assert.EqualValues(t, 1, ok.steps.Load())

	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Contains(t, []string{"a", "b"}, taskErr.Task)
	// Time still advances after a failed step.
	assert.InDelta(t, 0.01, loop.Time(), 1e-12)
}

func TestParallelLoop_SingleThreadRunsOnMain(t *testing.T) {
	r := &recorder{name: "main-only"}
	loop := newLoop(t, 1, r, r, r)

	_, err := loop.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Main", "Main", "Main"}, r.workers)
}

func TestParallelLoop_Lifecycle(t *testing.T) {
	loop := NewParallelLoop(Options{Scheduler: core.NewScheduler(nil), Threads: 2})

	_, err := loop.Step(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, loop.Reinit(2), ErrNotInitialized)

	require.NoError(t, loop.Init())
	assert.Equal(t, 2, loop.Scheduler().ThreadCount())

	require.NoError(t, loop.Reinit(3))
	assert.Equal(t, 3, loop.Scheduler().ThreadCount())

	loop.Cleanup()
	assert.False(t, loop.Scheduler().IsInitialized())
	_, err = loop.Step(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	loop.Cleanup()
}

func TestParallelLoop_NamedFactory(t *testing.T) {
	const name = "animation-test"
	simtask.RegisterFactory(name, func() *core.Scheduler {
		return core.NewScheduler(&core.SchedulerConfig{Name: name})
	})
	t.Cleanup(func() { _, _ = simtask.CreateScheduler(simtask.DefaultSchedulerName) })

	loop := NewParallelLoop(Options{SchedulerName: name, Threads: 2})
	require.NoError(t, loop.Init())
	defer loop.Cleanup()

	assert.Equal(t, name, simtask.CurrentName())
	assert.Same(t, simtask.GlobalScheduler(), loop.Scheduler())
	assert.Equal(t, name, loop.Scheduler().Name())

	bad := NewParallelLoop(Options{SchedulerName: "no-such-factory"})
	assert.ErrorIs(t, bad.Init(), simtask.ErrUnknownFactory)
}

func TestParallelLoop_StepSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p, err := tracing.InitWithExporter("animation-test", "v0", exporter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	loop := newLoop(t, 2, &recorder{name: "traced"})
	report, err := loop.Step(context.Background(), 0)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "animation.step", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "data-exchange", spans[0].Events[0].Name)

	var gotID string
	for _, kv := range spans[0].Attributes {
		if kv.Key == "step.id" {
			gotID = kv.Value.AsString()
		}
	}
	assert.Equal(t, report.ID.String(), gotID)
}
