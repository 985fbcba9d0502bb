// Package main is the rpa command line: it runs and schedules the
// municipality's automation jobs and opens RDP sessions to the robot hosts.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	// Import the jobs package to register all jobs.
	_ "github.com/nyborg-rpa/rpa-core/internal/jobs"
)

func main() {
	log.SetFlags(log.LstdFlags)
	log.SetOutput(os.Stderr)

	config.LoadEnv()

	app := cli.NewApp()
	app.Name = "rpa"
	app.Usage = "Nyborg Kommune RPA utilities"
	app.Commands = []cli.Command{
		jobsCmd,
		scheduleCmd,
		rdpLoginCmd,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
