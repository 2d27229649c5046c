package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/persistence/file"
	"github.com/KallebyX/simao-sub001/pkg/persistence/memory"
	"github.com/KallebyX/simao-sub001/pkg/persistence/postgresql"
	"github.com/KallebyX/simao-sub001/pkg/persistence/redis"
	"github.com/cenkalti/backoff/v4"
)

var supportedPersistenceProviders = []string{"file", "memory", "postgres", "postgresql"}

const connectAttempts = 5

// NewPersistence opens the backend named by the database URL scheme and,
// when a Redis URL is set, moves execution contexts to Redis. Connections
// are retried with exponential backoff so the engine can start before its
// database.
func NewPersistence(ctx context.Context, cfg config.PersistenceConfig, logger *slog.Logger) (*Store, error) {
	backend, err := connect(ctx, logger, func(ctx context.Context) (persistence.Persistence, error) {
		return openBackend(ctx, cfg.DatabaseURL, logger)
	})
	if err != nil {
		return nil, err
	}

	var contexts *redis.Store

	if cfg.RedisURL != "" {
		contexts, err = connect(ctx, logger, func(ctx context.Context) (*redis.Store, error) {
			return redis.New(ctx, redis.Config{
				URL:       cfg.RedisURL,
				TTL:       cfg.ContextTTL,
				Namespace: "flowengine",
			})
		})
		if err != nil {
			_ = backend.Close(ctx)

			return nil, err
		}
	}

	return NewStore(backend, contexts, cfg.GraphCacheTTL), nil
}

func openBackend(ctx context.Context, databaseURL string, logger *slog.Logger) (persistence.Persistence, error) {
	provider, rest := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return file.NewPersistence(rest), nil
	}
}

// parsePersistenceProvider splits a database URL into its provider and the
// remainder. Unknown schemes and bare paths are file roots.
func parsePersistenceProvider(databaseURL string) (string, string) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider, rest
		}
	}

	return "file", databaseURL
}

func connect[T any](ctx context.Context, logger *slog.Logger, open func(context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	attempt := 0

	return backoff.RetryWithData(func() (T, error) {
		attempt++

		value, err := open(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Connection attempt failed", "attempt", attempt, "error", err)

			return value, fmt.Errorf("connection attempt %d: %w", attempt, err)
		}

		return value, nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, connectAttempts-1), ctx))
}
