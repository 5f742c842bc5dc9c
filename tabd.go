package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tabd/annotate/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "tabd",
		Usage:   "Annotate GitHub diffs with the provenance of every change",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./tabd.toml, ~/.config/tabd/tabd.toml)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load TABD_ environment overrides from `FILE`",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "GitHub personal access token",
				EnvVars: []string{"GITHUB_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "capture",
				Usage: "Record GitHub API responses as JSON fixtures",
			},
		},
		Before: cmd.Setup,
		Commands: []*cli.Command{
			cmd.AnnotateCommand(),
			cmd.WatchCommand(),
			cmd.ResolveCommand(),
			cmd.HashCommand(),
			cmd.TrackingCommand(),
			cmd.APICommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
