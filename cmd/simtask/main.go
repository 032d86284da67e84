// Command simtask inspects and exercises the work-stealing task scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "simtask",
		Usage:   "work-stealing task scheduler for simulation steps",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML or YAML config file",
				EnvVars: []string{"SIMTASK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "console, text or json",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve /metrics, /debug/workers and /healthz on this address while running",
			},
			&cli.StringFlag{
				Name:  "trace-file",
				Usage: "write OpenTelemetry spans as JSON to this file",
			},
		},
		Commands: []*cli.Command{
			InfoCommand(),
			BenchCommand(),
			StepCommand(),
		},
	}
}
