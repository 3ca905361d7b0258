package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Version is set by build flags
var Version = "dev"

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	app := newApp(NewRunner(RunnerOpts{Logger: logger}))
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("command failed", "err", err)
	}
}

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "omokpang-client",
		Usage:   "Play OmokPang and manage your account from the terminal",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Base URL of the OmokPang server",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("OMOKPANG_SERVER"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.Before,
		Commands: runner.register(),
	}
}
