// Package postgresql provides PostgreSQL persistence for flows, triggers and
// execution contexts.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	graphRepo   *GraphRepository
	contextRepo *ExecutionContextRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	// Run migrations on initialization
	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		graphRepo:   NewGraphRepository(database, logger),
		contextRepo: NewExecutionContextRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// GraphRepository returns the repository backing the graph store.
func (p *Persistence) GraphRepository() *GraphRepository {
	return p.graphRepo
}

// ExecutionContextRepository returns the repository backing the context store.
func (p *Persistence) ExecutionContextRepository() *ExecutionContextRepository {
	return p.contextRepo
}

func (p *Persistence) LoadGraph(ctx context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	return p.graphRepo.GetByID(ctx, tenantID, flowID)
}

func (p *Persistence) SaveGraph(ctx context.Context, graph *models.FlowGraph) error {
	return p.graphRepo.Save(ctx, graph)
}

func (p *Persistence) DeleteGraph(ctx context.Context, tenantID, flowID string) error {
	return p.graphRepo.Delete(ctx, tenantID, flowID)
}

func (p *Persistence) Triggers(ctx context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	return p.graphRepo.Triggers(ctx, tenantID, channelID)
}

func (p *Persistence) SaveTrigger(ctx context.Context, trigger *models.Trigger) error {
	return p.graphRepo.SaveTrigger(ctx, trigger)
}

func (p *Persistence) DefaultFlows(ctx context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	return p.graphRepo.DefaultFlows(ctx, tenantID, channelID)
}

func (p *Persistence) SaveDefaultFlows(ctx context.Context, defaults *models.DefaultFlows) error {
	return p.graphRepo.SaveDefaultFlows(ctx, defaults)
}

func (p *Persistence) LoadContext(ctx context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	return p.contextRepo.Get(ctx, tenantID, conversationID)
}

func (p *Persistence) SaveContext(ctx context.Context, execCtx *models.ExecutionContext) error {
	return p.contextRepo.Save(ctx, execCtx)
}

func (p *Persistence) DeleteContext(ctx context.Context, tenantID, conversationID string) error {
	return p.contextRepo.Delete(ctx, tenantID, conversationID)
}

func (p *Persistence) DueWaits(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	return p.contextRepo.DueWaits(ctx, now, limit)
}
