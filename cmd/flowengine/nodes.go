package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/cmd"
	"github.com/KallebyX/simao-sub001/pkg/config"
	cli "github.com/urfave/cli/v3"
)

func NodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "Print the node kinds flows can use, with their config schemas",
		Action: func(_ context.Context, command *cli.Command) error {
			reg := cmd.NewRegistry(slog.New(slog.DiscardHandler), config.FlowConfig{})

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(reg.Catalogue())
		},
	}
}
