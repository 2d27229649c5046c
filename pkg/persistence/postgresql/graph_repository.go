package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
)

// GraphRepository handles flow graph, trigger and default flow database operations.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

// GetByID retrieves a flow graph snapshot.
func (r *GraphRepository) GetByID(ctx context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM flow_graphs WHERE tenant_id = $1 AND id = $2`,
		tenantID, flowID,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("LoadGraph", persistence.ErrGraphNotFound, tenantID, flowID)
		}

		return nil, persistence.NewStoreError("LoadGraph", err, tenantID, flowID)
	}

	var graph models.FlowGraph

	err = json.Unmarshal(document, &graph)
	if err != nil {
		return nil, persistence.NewStoreError("LoadGraph", fmt.Errorf("failed to unmarshal graph: %w", err), tenantID, flowID)
	}

	return &graph, nil
}

// Save upserts a flow graph.
func (r *GraphRepository) Save(ctx context.Context, graph *models.FlowGraph) error {
	document, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	updatedAt := graph.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO flow_graphs (tenant_id, id, name, document, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, graph.TenantID, graph.ID, graph.Name, document, updatedAt)
	if err != nil {
		return persistence.NewStoreError("SaveGraph", err, graph.TenantID, graph.ID)
	}

	return nil
}

// Delete removes a flow graph. Its triggers are left to the editor.
func (r *GraphRepository) Delete(ctx context.Context, tenantID, flowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM flow_graphs WHERE tenant_id = $1 AND id = $2`, tenantID, flowID)
	if err != nil {
		return persistence.NewStoreError("DeleteGraph", err, tenantID, flowID)
	}

	return nil
}

// Triggers returns the enabled triggers applying to channelID in authoring order.
func (r *GraphRepository) Triggers(ctx context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	query := `
		SELECT id, tenant_id, channel_id, name, phrase, flow_id, status
		FROM flow_triggers
		WHERE tenant_id = $1
			AND status = 'active'
			AND (channel_id = '' OR channel_id = $2)
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, channelID)
	if err != nil {
		return nil, persistence.NewStoreError("Triggers", err, tenantID)
	}
	defer rows.Close()

	var triggers []*models.Trigger

	for rows.Next() {
		var trigger models.Trigger

		err := rows.Scan(&trigger.ID, &trigger.TenantID, &trigger.ChannelID, &trigger.Name,
			&trigger.Phrase, &trigger.FlowID, &trigger.Status)
		if err != nil {
			return nil, persistence.NewStoreError("Triggers", fmt.Errorf("failed to scan trigger: %w", err), tenantID)
		}

		triggers = append(triggers, &trigger)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Triggers", err, tenantID)
	}

	return triggers, nil
}

// SaveTrigger upserts a trigger, keeping its position when it already exists.
func (r *GraphRepository) SaveTrigger(ctx context.Context, trigger *models.Trigger) error {
	status := trigger.Status
	if status == "" {
		status = models.TriggerStatusActive
	}

	query := `
		INSERT INTO flow_triggers (tenant_id, id, channel_id, name, phrase, flow_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			name = EXCLUDED.name,
			phrase = EXCLUDED.phrase,
			flow_id = EXCLUDED.flow_id,
			status = EXCLUDED.status
	`

	_, err := r.db.ExecContext(ctx, query, trigger.TenantID, trigger.ID, trigger.ChannelID,
		trigger.Name, trigger.Phrase, trigger.FlowID, status)
	if err != nil {
		return persistence.NewStoreError("SaveTrigger", err, trigger.TenantID, trigger.ID)
	}

	return nil
}

// DefaultFlows returns the channel's defaults or the tenant-wide ones.
func (r *GraphRepository) DefaultFlows(ctx context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	query := `
		SELECT tenant_id, channel_id, welcome_flow_id, no_phrase_flow_id
		FROM flow_defaults
		WHERE tenant_id = $1 AND (channel_id = $2 OR channel_id = '')
		ORDER BY channel_id DESC
		LIMIT 1
	`

	var defaults models.DefaultFlows

	err := r.db.QueryRowContext(ctx, query, tenantID, channelID).Scan(
		&defaults.TenantID, &defaults.ChannelID, &defaults.WelcomeFlowID, &defaults.NoPhraseFlowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewStoreError("DefaultFlows", err, tenantID, channelID)
	}

	return &defaults, nil
}

// SaveDefaultFlows upserts the defaults of a tenant channel.
func (r *GraphRepository) SaveDefaultFlows(ctx context.Context, defaults *models.DefaultFlows) error {
	query := `
		INSERT INTO flow_defaults (tenant_id, channel_id, welcome_flow_id, no_phrase_flow_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, channel_id) DO UPDATE SET
			welcome_flow_id = EXCLUDED.welcome_flow_id,
			no_phrase_flow_id = EXCLUDED.no_phrase_flow_id
	`

	_, err := r.db.ExecContext(ctx, query, defaults.TenantID, defaults.ChannelID,
		defaults.WelcomeFlowID, defaults.NoPhraseFlowID)
	if err != nil {
		return persistence.NewStoreError("SaveDefaultFlows", err, defaults.TenantID, defaults.ChannelID)
	}

	return nil
}
