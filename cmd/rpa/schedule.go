package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/nyborg-rpa/rpa-core/internal/job"
)

var scheduleOpts = struct {
	config string
}{}

var scheduleCmd = cli.Command{
	Name:  "schedule",
	Usage: "Run jobs on cron schedules from a YAML file",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "Schedule file",
			Value:       "schedule.yaml",
			EnvVar:      "RPA_SCHEDULE",
			Destination: &scheduleOpts.config,
		},
	},
	Action: scheduleAction,
}

func scheduleAction(c *cli.Context) error {
	entries, err := job.LoadSchedule(scheduleOpts.config)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := job.NewRunner(job.DefaultRegistry(), os.Stdout)
	scheduler := job.NewScheduler(runner)
	for _, entry := range entries {
		if err := scheduler.Add(ctx, entry); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		log.Printf("scheduled %s (%s)", entry.Job, entry.Cron)
	}

	scheduler.Run(ctx)
	return nil
}
