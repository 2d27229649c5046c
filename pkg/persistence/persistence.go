// Package persistence defines the stores the engine reads flows from and
// keeps conversation state in.
package persistence

import (
	"context"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
)

// GraphStore serves flow definitions and triggers. The engine only reads;
// the flow editor owns writes.
type GraphStore interface {
	LoadGraph(ctx context.Context, tenantID, flowID string) (*models.FlowGraph, error)
	// Triggers returns the enabled triggers of tenantID that apply to
	// channelID, in authoring order.
	Triggers(ctx context.Context, tenantID, channelID string) ([]*models.Trigger, error)
	// DefaultFlows returns the channel's defaults, falling back to the
	// tenant-wide ones. It returns nil when neither exists.
	DefaultFlows(ctx context.Context, tenantID, channelID string) (*models.DefaultFlows, error)
}

// GraphWriter stores flow definitions. Used by seeding and the CLI.
type GraphWriter interface {
	SaveGraph(ctx context.Context, graph *models.FlowGraph) error
	// DeleteGraph removes a flow. Executions still on it end at their next step.
	DeleteGraph(ctx context.Context, tenantID, flowID string) error
	SaveTrigger(ctx context.Context, trigger *models.Trigger) error
	SaveDefaultFlows(ctx context.Context, defaults *models.DefaultFlows) error
}

// ContextStore keeps the resumable state of conversations between steps.
type ContextStore interface {
	// LoadContext returns ErrExecutionContextNotFound when the conversation
	// has no context.
	LoadContext(ctx context.Context, tenantID, conversationID string) (*models.ExecutionContext, error)
	SaveContext(ctx context.Context, execCtx *models.ExecutionContext) error
	DeleteContext(ctx context.Context, tenantID, conversationID string) error
	// DueWaits returns up to limit contexts suspended on a wait whose
	// resume time is at or before now, earliest first.
	DueWaits(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error)
}

// Persistence is a backend serving every store.
type Persistence interface {
	GraphStore
	GraphWriter
	ContextStore

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Due reports whether execCtx is a wait whose resume time has come.
func Due(execCtx *models.ExecutionContext, now time.Time) bool {
	return execCtx.Active() &&
		execCtx.Status == models.ExecutionStatusWaiting &&
		execCtx.ResumeAt != nil &&
		!execCtx.ResumeAt.After(now)
}
