package main

import (
	"context"
	"fmt"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/cmd"
	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/log"
	"github.com/KallebyX/simao-sub001/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Validate a flow document and store it, optionally with a trigger phrase",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "phrase",
				Usage: "Trigger phrase that starts the flow",
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel the trigger or default applies to; empty means every channel",
			},
			&cli.BoolFlag{
				Name:  "welcome",
				Usage: "Make the flow the welcome default",
			},
			&cli.BoolFlag{
				Name:  "no-phrase",
				Usage: "Make the flow the default for messages matching no trigger",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.NArg() != 1 {
				return cli.Exit("exactly one flow file is required", 2)
			}

			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel)
			logger := log.WithModule("import")

			reg := cmd.NewRegistry(logger, cfg.Flow)

			graph, err := loadFlowFile(reg, command.Args().First())
			if err != nil {
				return err
			}

			store, err := cmd.NewPersistence(ctx, cfg.Persistence, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			graph.UpdatedAt = time.Now().UTC()

			if err := store.SaveGraph(ctx, graph); err != nil {
				return fmt.Errorf("failed to save flow: %w", err)
			}

			logger.InfoContext(ctx, "Flow imported", "tenant_id", graph.TenantID, "flow_id", graph.ID)

			if phrase := command.String("phrase"); phrase != "" {
				trigger := &models.Trigger{
					ID:        graph.ID + "-trigger",
					TenantID:  graph.TenantID,
					ChannelID: command.String("channel"),
					Name:      graph.Name,
					Phrase:    phrase,
					FlowID:    graph.ID,
					Status:    models.TriggerStatusActive,
				}

				if err := store.SaveTrigger(ctx, trigger); err != nil {
					return fmt.Errorf("failed to save trigger: %w", err)
				}

				logger.InfoContext(ctx, "Trigger saved", "trigger_id", trigger.ID, "phrase", phrase)
			}

			if !command.Bool("welcome") && !command.Bool("no-phrase") {
				return nil
			}

			defaults, err := store.DefaultFlows(ctx, graph.TenantID, command.String("channel"))
			if err != nil {
				return err
			}

			// DefaultFlows may return tenant-wide defaults for a channel.
			if defaults == nil || defaults.ChannelID != command.String("channel") {
				defaults = &models.DefaultFlows{TenantID: graph.TenantID, ChannelID: command.String("channel")}
			}

			if command.Bool("welcome") {
				defaults.WelcomeFlowID = graph.ID
			}

			if command.Bool("no-phrase") {
				defaults.NoPhraseFlowID = graph.ID
			}

			return store.SaveDefaultFlows(ctx, defaults)
		},
	}
}
