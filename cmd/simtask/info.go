package main

import (
	"fmt"
	"strings"

	simtask "github.com/fyh275905/sofa-sub006"
	"github.com/fyh275905/sofa-sub006/core"
	"github.com/urfave/cli/v2"
)

func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Show hardware threads, scheduler defaults and the effective config",
		Action: InfoAction,
	}
}

func InfoAction(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer rt.close()

	threads := rt.cfg.Scheduler.Threads
	if threads <= 0 {
		threads = simtask.GetHardwareThreadsCount()
	}

	w := c.App.Writer
	fmt.Fprintf(w, "hardware threads:   %d\n", simtask.GetHardwareThreadsCount())
	fmt.Fprintf(w, "effective threads:  %d\n", threads)
	fmt.Fprintf(w, "allocator:          %s (available: %s)\n", allocatorName(rt.cfg.Scheduler.Allocator),
		strings.Join([]string{core.AllocatorHeap, core.AllocatorPool, core.AllocatorSlab}, ", "))
	fmt.Fprintf(w, "spin count:         %d\n", rt.cfg.Scheduler.SpinCount)
	fmt.Fprintf(w, "steal rounds:       %d\n", rt.cfg.Scheduler.StealRounds)
	fmt.Fprintf(w, "wait backoff:       %s\n", rt.cfg.Scheduler.WaitBackoff)
	fmt.Fprintf(w, "pin threads:        %t\n", rt.cfg.Scheduler.PinThreads)
	fmt.Fprintf(w, "factories:          %s\n", strings.Join(simtask.Factories(), ", "))
	return nil
}

func allocatorName(kind string) string {
	if kind == "" {
		return core.AllocatorHeap
	}
	return kind
}
