package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Match recipes and estimate processing time from the command line",
		Description: `Runs against the built-in standard recipe library unless --db is given, in
which case the database from the environment configuration is used.`,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "db",
				Usage: "Use the configured database instead of the built-in library",
			},
			&cli.StringFlag{
				Name:  "tables",
				Usage: "Path to a YAML modifier table override",
			},
			&cli.FloatFlag{
				Name:  "fallback",
				Usage: "Minutes per unit for steps without a matching recipe",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"o"},
				Value:   string(formatJSON),
				Usage:   fmt.Sprintf("Output format (supported values: %s, %s)", formatJSON, formatYAML),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			matchCmd(),
			recipeCmd(),
			routingCmd(),
			requestCmd(),
			listCmd(),
		},
	}
}
