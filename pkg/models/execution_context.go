package models

import (
	"maps"
	"time"
)

// ExecutionStatus is the lifecycle state of a conversation's flow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning        ExecutionStatus = "running"
	ExecutionStatusWaiting        ExecutionStatus = "waiting"         // suspended on a Wait node
	ExecutionStatusAwaitingResult ExecutionStatus = "awaiting_result" // suspended on a Webhook node
	ExecutionStatusDeferred       ExecutionStatus = "deferred"        // pool saturated, retried on next inbound event
	ExecutionStatusHandedOff      ExecutionStatus = "handed_off"      // ticket under human control until closed
	ExecutionStatusCancelled      ExecutionStatus = "cancelled"
)

// ReservedPrefix marks variables owned by the interpreter.
const ReservedPrefix = "__"

// Reserved variable namespaces.
const (
	ReservedRandom  = "random"
	ReservedWait    = "wait"
	ReservedWebhook = "webhook"
)

// VariableLastMessage holds the text of the most recent inbound message.
const VariableLastMessage = "lastMessage"

// ReservedKey builds the variable key a node uses to keep its own state.
func ReservedKey(namespace, nodeID string) string {
	return ReservedPrefix + namespace + ":" + nodeID
}

// ExecutionContext is the resumable per-conversation state of a flow.
type ExecutionContext struct {
	TenantID       string          `json:"tenant_id"`
	ConversationID string          `json:"conversation_id"`
	FlowID         string          `json:"flow_id"`
	CurrentNodeID  string          `json:"current_node_id"`
	Variables      map[string]any  `json:"variables"`
	Status         ExecutionStatus `json:"status"`
	ResumeAt       *time.Time      `json:"resume_at,omitempty"`
	PendingTaskID  string          `json:"pending_task_id,omitempty"`
	Epoch          uint64          `json:"epoch"`
	Cancelled      bool            `json:"cancelled"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAdvancedAt time.Time       `json:"last_advanced_at"`
}

// NewExecutionContext starts a context at the given node.
func NewExecutionContext(tenantID, conversationID, flowID, nodeID string, now time.Time) *ExecutionContext {
	return &ExecutionContext{
		TenantID:       tenantID,
		ConversationID: conversationID,
		FlowID:         flowID,
		CurrentNodeID:  nodeID,
		Variables:      make(map[string]any),
		Status:         ExecutionStatusRunning,
		CreatedAt:      now,
		LastAdvancedAt: now,
	}
}

// Clone returns a copy whose variable map can be mutated independently.
func (c *ExecutionContext) Clone() *ExecutionContext {
	clone := *c
	clone.Variables = maps.Clone(c.Variables)

	if clone.Variables == nil {
		clone.Variables = make(map[string]any)
	}

	if c.ResumeAt != nil {
		resumeAt := *c.ResumeAt
		clone.ResumeAt = &resumeAt
	}

	return &clone
}

// Active reports whether the context still owns the conversation.
func (c *ExecutionContext) Active() bool {
	return !c.Cancelled && c.Status != ExecutionStatusCancelled
}

// Automated reports whether inbound events still drive the flow.
func (c *ExecutionContext) Automated() bool {
	return c.Active() && c.Status != ExecutionStatusHandedOff
}

// Suspended reports whether the context waits on a timer or a worker result.
func (c *ExecutionContext) Suspended() bool {
	return c.Status == ExecutionStatusWaiting || c.Status == ExecutionStatusAwaitingResult
}

// Key identifies the conversation across tenants.
func (c *ExecutionContext) Key() string {
	return ConversationKey(c.TenantID, c.ConversationID)
}

// ConversationKey is the tenant-scoped conversation identifier.
func ConversationKey(tenantID, conversationID string) string {
	return tenantID + "/" + conversationID
}

// PublicVariables returns the variables without interpreter bookkeeping.
func (c *ExecutionContext) PublicVariables() map[string]any {
	out := make(map[string]any, len(c.Variables))

	for k, v := range c.Variables {
		if len(k) >= len(ReservedPrefix) && k[:len(ReservedPrefix)] == ReservedPrefix {
			continue
		}

		out[k] = v
	}

	return out
}
