package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/cmd"
	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/interpreter"
	"github.com/KallebyX/simao-sub001/pkg/log"
	"github.com/KallebyX/simao-sub001/pkg/otelhelper"
	"github.com/KallebyX/simao-sub001/pkg/randomizer"
	"github.com/KallebyX/simao-sub001/pkg/scheduler"
	"github.com/KallebyX/simao-sub001/pkg/web"
	"github.com/KallebyX/simao-sub001/pkg/workerpool"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 30 * time.Second

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the engine: HTTP API, worker pool and wait scheduler",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on; overrides server.port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error); overrides log_level",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence; overrides persistence.database_url",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for execution contexts; overrides persistence.redis_url",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "bus",
				Usage:   "Event bus bridge (memory, kafka, nats); overrides bus.provider",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			applyOverrides(cfg, command)

			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Setup(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, log.WithModule("flowengine"))
		},
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	instanceID := uuid.NewString()
	logger = logger.With("instance_id", instanceID)

	logger.InfoContext(ctx, "Initializing flow engine", "bus", cfg.Bus.Provider)

	tracer, shutdownTracer, err := newTracer(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	store, err := cmd.NewPersistence(ctx, cfg.Persistence, logger)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	bus := cmd.NewEventBus(cfg.Bus, logger)

	var bridge *eventbus.Bridge

	if cfg.Bus.Provider != config.BusMemory {
		bridge, err = cmd.NewBridge(cfg.Bus, bus, instanceID, logger)
		if err != nil {
			return errors.Join(err, store.Close(ctx))
		}

		if err := bridge.Start(ctx); err != nil {
			return errors.Join(fmt.Errorf("failed to start event bridge: %w", err), store.Close(ctx))
		}
	}

	reg := cmd.NewRegistry(logger, cfg.Flow)

	pool := workerpool.New(workerpool.Config{
		Workers:       cfg.Pool.Workers,
		QueueDepth:    cfg.Pool.QueueDepth,
		EffectTimeout: cfg.Pool.EffectTimeout,
		Concurrency:   cfg.Pool.WorkerConcurrency,
	}, cmd.NewEffectsExecutor(cfg.Channel, cfg.Pool, bus, logger), logger)

	engine := dispatcher.New(
		dispatcher.Config{MaxHops: cfg.Flow.MaxHops},
		store,
		store,
		reg,
		interpreter.New(interpreter.WithRandomSource(randomizer.NewSource())),
		pool,
		bus,
		logger,
		dispatcher.WithTracer(tracer),
	)

	resumerConfig := scheduler.DefaultConfig()
	resumerConfig.Interval = cfg.Scheduler.Interval
	resumerConfig.BatchSize = cfg.Scheduler.BatchSize

	resumer := scheduler.New(resumerConfig, store, engine, logger)
	if err := resumer.Start(ctx); err != nil {
		return err
	}

	tokens := make(web.StaticTokens, len(cfg.Auth.Tokens))
	for token, principal := range cfg.Auth.Tokens {
		tokens[token] = web.Principal(principal)
	}

	if len(tokens) == 0 {
		logger.WarnContext(ctx, "No API tokens configured; every request will be rejected")
	}

	server := web.NewServer(
		web.NewAPIHandlers(engine, store, bus, reg, validator.New(validator.WithRequiredStructEnabled()), logger),
		tokens,
		store.HealthCheck,
		logger,
	)

	serverErr := make(chan error, 1)

	go func() {
		serverErr <- server.Start(cfg.Server.Port)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down flow engine")
	case err = <-serverErr:
		logger.Error("HTTP server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop intake first, then drain in-flight work, then release transports.
	shutdownErr := errors.Join(
		server.Shutdown(shutdownCtx),
		resumer.Stop(shutdownCtx),
		engine.Shutdown(shutdownCtx),
		pool.Shutdown(shutdownCtx),
		closeBridge(bridge),
		bus.Close(),
		store.Close(shutdownCtx),
		shutdownTracer(shutdownCtx),
	)
	if shutdownErr != nil {
		logger.Error("Shutdown finished with errors", "error", shutdownErr)
	}

	return err
}

func applyOverrides(cfg *config.Config, command *cli.Command) {
	if port := command.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	if level := command.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if url := command.String("database-url"); url != "" {
		cfg.Persistence.DatabaseURL = url
	}

	if url := command.String("redis-url"); url != "" {
		cfg.Persistence.RedisURL = url
	}

	if provider := command.String("bus"); provider != "" {
		cfg.Bus.Provider = provider
	}
}

func closeBridge(bridge *eventbus.Bridge) error {
	if bridge == nil {
		return nil
	}

	return bridge.Close()
}

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func newTracer(ctx context.Context, cfg config.TracingConfig) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.Enabled {
		return otelhelper.GlobalTracer("flowengine"), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, "flowengine")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}
