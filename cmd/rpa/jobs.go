package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

var runOpts = struct {
	padScript bool
}{}

var jobsCmd = cli.Command{
	Name:  "jobs",
	Usage: "List and run registered jobs",
	Subcommands: []cli.Command{
		{
			Name:   "list",
			Usage:  "List registered jobs",
			Action: listAction,
		},
		{
			Name:      "run",
			Usage:     "Run a job by name",
			ArgsUsage: "<name> [key=value ...]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:        "pad-script",
					Usage:       "Emit the result as a single JSON line on stdout for Power Automate Desktop",
					Destination: &runOpts.padScript,
				},
			},
			Action: runAction,
		},
	},
}

func listAction(c *cli.Context) error {
	for _, def := range job.DefaultRegistry().List() {
		fmt.Printf("%-28s %s\n", def.Name, def.Description)
	}
	return nil
}

func runAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: rpa jobs run <name> [key=value ...]", 1)
	}
	name := c.Args().First()

	params, err := job.ParseArgs(c.Args().Tail())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	runner := job.NewRunner(job.DefaultRegistry(), os.Stdout)
	runner.PadMode = runOpts.padScript

	if _, err := runner.Run(context.Background(), name, params); err != nil {
		if runOpts.padScript {
			// The error already went to stdout as a JSON line; the exit
			// code tells the desktop flow the run failed.
			os.Exit(1)
		}
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
