package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fyh275905/sofa-sub006/core"
	"github.com/fyh275905/sofa-sub006/internal/workload"
	"github.com/fyh275905/sofa-sub006/tracing"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/attribute"
)

func BenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Run the fan-out scenario and report throughput and steals",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threads", Aliases: []string{"t"}, Usage: "worker count including main; 0 = hardware threads"},
			&cli.IntFlag{Name: "roots", Value: 64, Usage: "root tasks submitted from main"},
			&cli.IntFlag{Name: "children", Value: 64, Usage: "children spawned by every root"},
			&cli.IntFlag{Name: "iterations", Aliases: []string{"i"}, Value: 5, Usage: "fan-out rounds"},
			&cli.IntFlag{Name: "work", Value: 2000, Usage: "floating point rounds per child"},
		},
		Action: BenchAction,
	}
}

func BenchAction(c *cli.Context) error {
	roots, children, iterations := c.Int("roots"), c.Int("children"), c.Int("iterations")
	if roots < 1 || children < 0 || iterations < 1 {
		return cli.Exit("roots and iterations must be >= 1, children >= 0", 1)
	}

	rt, err := setup(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer rt.close()

	s, err := rt.scheduler()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	ctx, span := tracing.StartSpan(c.Context, "bench",
		attribute.String("scheduler", s.Name()),
		attribute.Int("threads", s.ThreadCount()),
		attribute.Int("roots", roots),
		attribute.Int("children", children),
	)
	mainCtx := s.MainContext(ctx)
	work := c.Int("work")
	leaf := func(context.Context, int, int) error {
		workload.Burn(work)
		return nil
	}

	w := c.App.Writer
	fmt.Fprintf(w, "scheduler %s: %d threads, %d roots x %d children\n", s.Name(), s.ThreadCount(), roots, children)

	var total time.Duration
	var tasks int
	for i := 0; i < iterations; i++ {
		res, err := workload.FanOut(mainCtx, s, roots, children, leaf)
		if err != nil {
			tracing.EndSpan(span, err)
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		total += res.Duration
		tasks += res.Tasks
		fmt.Fprintf(w, "  round %d: %d tasks in %s (%.0f tasks/s)\n",
			i+1, res.Tasks, res.Duration.Round(time.Microsecond), rate(res.Tasks, res.Duration))
	}
	tracing.EndSpan(span, nil)

	st := s.Stats()
	fmt.Fprintf(w, "total: %d tasks in %s (%.0f tasks/s), %d steals\n",
		tasks, total.Round(time.Microsecond), rate(tasks, total), st.Stolen())
	printWorkers(c, st)
	return nil
}

func printWorkers(c *cli.Context, st core.SchedulerStats) {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tTID\tEXECUTED\tSTOLEN\tIDLE WAITS\tFAILED")
	for _, wk := range st.Workers {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			wk.Name, wk.OSThreadID, wk.Executed, wk.Stolen, wk.IdleWaits, wk.Failed+wk.Panicked)
	}
	_ = tw.Flush()
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
