package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fyh275905/sofa-sub006/animation"
	"github.com/fyh275905/sofa-sub006/core"
	"github.com/fyh275905/sofa-sub006/internal/workload"
	"github.com/urfave/cli/v2"
)

func StepCommand() *cli.Command {
	return &cli.Command{
		Name:  "step",
		Usage: "Drive a parallel animation loop over synthetic particle systems",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "threads", Aliases: []string{"t"}, Usage: "worker count including main; 0 = hardware threads"},
			&cli.IntFlag{Name: "systems", Value: 4, Usage: "particle systems stepped in parallel"},
			&cli.IntFlag{Name: "particles", Aliases: []string{"p"}, Value: 4096, Usage: "particles per system"},
			&cli.IntFlag{Name: "grain", Usage: "particles per chunk; 0 = automatic"},
			&cli.IntFlag{Name: "steps", Aliases: []string{"n"}, Value: 100, Usage: "timesteps to run"},
			&cli.Float64Flag{Name: "dt", Value: 0.001, Usage: "timestep in seconds"},
		},
		Action: StepAction,
	}
}

func StepAction(c *cli.Context) error {
	systems, steps, dt := c.Int("systems"), c.Int("steps"), c.Float64("dt")
	if systems < 1 || steps < 1 || dt <= 0 {
		return cli.Exit("systems and steps must be >= 1, dt > 0", 1)
	}

	rt, err := setup(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer rt.close()

	loop := animation.NewParallelLoop(animation.Options{
		SchedulerName: configuredFactory,
		Threads:       rt.cfg.Scheduler.Threads,
		DefaultDt:     dt,
		Logger:        rt.logger,
	})
	particles := make([]*workload.ParticleSystem, systems)
	for i := range particles {
		particles[i] = workload.NewParticleSystem(fmt.Sprintf("system-%d", i), c.Int("particles"))
		particles[i].Grain = c.Int("grain")
		loop.Add(particles[i])
	}
	loop.OnDataExchange(func(_ context.Context, ev animation.DataExchangeEvent) {
		if ev.Step%100 == 0 {
			rt.logger.Debug("data exchange", core.F("step", ev.Step), core.F("time", ev.Time))
		}
	})

	if err := loop.Init(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer loop.Cleanup()

	var total time.Duration
	for i := 0; i < steps; i++ {
		report, err := loop.Step(c.Context, 0)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed at step %d (%s): %v", report.Index, report.ID, err), 1)
		}
		total += report.Duration
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%d steps on %d threads, simulated %.4fs, mean step %s\n",
		steps, loop.Scheduler().ThreadCount(), loop.Time(), (total / time.Duration(steps)).Round(time.Microsecond))
	for _, p := range particles {
		fmt.Fprintf(w, "  %s: %d particles, energy %.6f\n", p.Name(), p.Len(), p.Energy())
	}
	printWorkers(c, loop.Scheduler().Stats())
	return nil
}
