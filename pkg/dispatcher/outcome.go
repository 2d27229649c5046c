package dispatcher

import "github.com/KallebyX/simao-sub001/pkg/models"

// Route says how an inbound event was handled.
type Route string

const (
	// RouteStarted means a trigger or default flow started a new execution.
	RouteStarted Route = "started"
	// RouteResumed means the event continued an existing execution.
	RouteResumed Route = "resumed"
	// RouteHuman means no flow applies; the ticket stays with human agents.
	RouteHuman Route = "human"
	// RouteDiscarded means the event or result was superseded and dropped.
	RouteDiscarded Route = "discarded"
	// RouteClosed means the conversation's flow was cancelled.
	RouteClosed Route = "closed"
	// RouteFailed means the execution could not be loaded or stored.
	RouteFailed Route = "failed"
)

// Outcome summarizes one job of a conversation mailbox.
type Outcome struct {
	Route  Route                  `json:"route"`
	FlowID string                 `json:"flow_id,omitempty"`
	NodeID string                 `json:"node_id,omitempty"`
	Status models.ExecutionStatus `json:"status,omitempty"`
	Reason models.Reason          `json:"reason,omitempty"`
	Hops   int                    `json:"hops,omitempty"`
	Err    error                  `json:"-"`
}

// Deferred reports whether the run stopped on pool backpressure and will be
// retried with the conversation's next event.
func (o Outcome) Deferred() bool {
	return o.Status == models.ExecutionStatusDeferred
}

// Terminal reports whether the automated flow ended.
func (o Outcome) Terminal() bool {
	return o.Reason != models.ReasonNone
}
