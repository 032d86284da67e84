package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/fyh275905/sofa-sub006/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("simtask", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("sched-a", "Worker 1", 250*time.Microsecond)
	exporter.RecordTaskPanic("sched-a", "panic")
	exporter.RecordTaskFailure("sched-a")
	exporter.RecordTaskStolen("sched-a", "Worker 1")
	exporter.RecordTaskStolen("sched-a", "Worker 1")
	exporter.RecordIdleWait("sched-a", "Worker 2")
	exporter.RecordTaskRejected("sched-a", "shutting down")

	if got := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("sched-a")); got != 1 {
		t.Fatalf("panic total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskFailureTotal.WithLabelValues("sched-a")); got != 1 {
		t.Fatalf("failure total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskStolenTotal.WithLabelValues("sched-a", "Worker 1")); got != 2 {
		t.Fatalf("stolen total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(exporter.idleWaitTotal.WithLabelValues("sched-a", "Worker 2")); got != 1 {
		t.Fatalf("idle wait total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("sched-a", "shutting down")); got != 1 {
		t.Fatalf("rejected total = %v, want 1", got)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("sched-a", "Worker 1"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("simtask", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("simtask", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("sched-a", nil)
	second.RecordTaskPanic("sched-a", nil)

	got := testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("sched-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func TestMetricsExporter_WiredIntoScheduler(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	cfg := core.DefaultSchedulerConfig()
	cfg.Name = "wired"
	cfg.Metrics = exporter
	s := core.NewScheduler(cfg)
	if err := s.Start(2); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	ctx := s.MainContext(context.Background())
	status := core.NewStatus()
	for i := 0; i < 20; i++ {
		_ = s.Submit(ctx, status, func(ctx context.Context) error { return nil })
	}
	_ = s.WorkUntilDone(ctx, status)

	count, err := testutil.GatherAndCount(reg, "simtask_task_duration_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count == 0 {
		t.Fatal("no task duration series exported")
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
