package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "flowengine",
		Usage:                 "Run conversation flows for messaging channels",
		Version:               version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML, JSON or TOML config file",
				Sources: cli.EnvVars("FLOWENGINE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			RunCommand(),
			ValidateCommand(),
			ImportCommand(),
			NodesCommand(),
		},
	}
}
