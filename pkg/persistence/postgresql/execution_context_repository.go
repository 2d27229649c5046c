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

// ExecutionContextRepository handles execution context-related database operations.
// The whole context is kept as a document; status, cancellation and resume
// time are duplicated into columns for the due-wait index.
type ExecutionContextRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionContextRepository creates a new execution context repository.
func NewExecutionContextRepository(db *sql.DB, logger *slog.Logger) *ExecutionContextRepository {
	return &ExecutionContextRepository{db: db, logger: logger}
}

// Save upserts an execution context.
func (r *ExecutionContextRepository) Save(ctx context.Context, execCtx *models.ExecutionContext) error {
	document, err := json.Marshal(execCtx)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	query := `
		INSERT INTO execution_contexts (
			tenant_id, conversation_id, flow_id, status, cancelled, resume_at, document, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (tenant_id, conversation_id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id,
			status = EXCLUDED.status,
			cancelled = EXCLUDED.cancelled,
			resume_at = EXCLUDED.resume_at,
			document = EXCLUDED.document,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		execCtx.TenantID,
		execCtx.ConversationID,
		execCtx.FlowID,
		execCtx.Status,
		execCtx.Cancelled,
		execCtx.ResumeAt,
		document,
	)
	if err != nil {
		return persistence.NewStoreError("SaveContext", err, execCtx.TenantID, execCtx.ConversationID)
	}

	return nil
}

// Get retrieves the execution context of a conversation.
func (r *ExecutionContextRepository) Get(ctx context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document FROM execution_contexts WHERE tenant_id = $1 AND conversation_id = $2`,
		tenantID, conversationID,
	)

	execCtx, err := scanExecutionContext(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("LoadContext", persistence.ErrExecutionContextNotFound, tenantID, conversationID)
		}

		return nil, persistence.NewStoreError("LoadContext", err, tenantID, conversationID)
	}

	return execCtx, nil
}

// Delete removes the execution context of a conversation.
func (r *ExecutionContextRepository) Delete(ctx context.Context, tenantID, conversationID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM execution_contexts WHERE tenant_id = $1 AND conversation_id = $2`,
		tenantID, conversationID,
	)
	if err != nil {
		return persistence.NewStoreError("DeleteContext", err, tenantID, conversationID)
	}

	return nil
}

// DueWaits returns waiting contexts whose resume time has come, earliest first.
func (r *ExecutionContextRepository) DueWaits(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT document FROM execution_contexts
		WHERE status = 'waiting' AND NOT cancelled AND resume_at <= $1
		ORDER BY resume_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due waits: %w", err)
	}
	defer rows.Close()

	var due []*models.ExecutionContext

	for rows.Next() {
		execCtx, err := scanExecutionContext(rows)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable execution context", "error", err)

			continue
		}

		due = append(due, execCtx)
	}

	return due, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecutionContext(row scanner) (*models.ExecutionContext, error) {
	var document []byte

	err := row.Scan(&document)
	if err != nil {
		return nil, err
	}

	var execCtx models.ExecutionContext

	err = json.Unmarshal(document, &execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
	}

	if execCtx.Variables == nil {
		execCtx.Variables = make(map[string]any)
	}

	return &execCtx, nil
}
