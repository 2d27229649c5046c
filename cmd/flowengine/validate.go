package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/KallebyX/simao-sub001/pkg/cmd"
	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/interpreter"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/registry"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate flow documents without storing them",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.NArg() == 0 {
				return cli.Exit("at least one flow file is required", 2)
			}

			reg := cmd.NewRegistry(slog.New(slog.DiscardHandler), config.FlowConfig{})

			failed := 0

			for _, path := range command.Args().Slice() {
				if !validateFile(command.Root().Writer, reg, path) {
					failed++
				}
			}

			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d flows are invalid", failed, command.NArg()), 1)
			}

			return nil
		},
	}
}

func validateFile(out io.Writer, reg *registry.Registry, path string) bool {
	graph, err := loadFlowFile(reg, path)
	if err != nil {
		fmt.Fprintf(out, "%s: invalid\n", path)

		var graphErr *models.GraphError
		if errors.As(err, &graphErr) && len(graphErr.Problems) > 0 {
			for _, problem := range graphErr.Problems {
				fmt.Fprintf(out, "  - %s\n", problem)
			}
		} else {
			fmt.Fprintf(out, "  - %s\n", err)
		}

		return false
	}

	fmt.Fprintf(out, "%s: ok (flow %s, %d nodes, entry %s)\n", path, graph.ID, len(graph.Nodes), graph.EntryNode())

	return true
}

// loadFlowFile decodes and compiles a JSON or YAML flow document.
func loadFlowFile(reg *registry.Registry, path string) (*models.FlowGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	graph, err := models.DecodeGraph(data)
	if err != nil {
		return nil, err
	}

	if _, err := interpreter.Compile(reg, graph); err != nil {
		return nil, err
	}

	return graph, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, err
	}

	return json.Marshal(document)
}
