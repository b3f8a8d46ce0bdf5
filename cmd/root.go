package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "fleetkeeper",
		Version: version,
		Usage:   "Retention controller for an elastic build-agent fleet. Launches agents on sustained demand, parks them when idle.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("FLEETKEEPER_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("FLEETKEEPER_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			controllerCmd(),
			migrateCmd(),
			checkPatternCmd(),
		},
	}
}
