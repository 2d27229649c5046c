// Package wait provides the node that suspends a conversation for a duration.
package wait

import (
	"errors"
	"fmt"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// Config is the authored shape of a wait node. Exactly one of Seconds or
// Duration is expected; Duration uses Go syntax such as "1h30m".
type Config struct {
	Seconds  float64 `json:"seconds"  validate:"gte=0"`
	Duration string  `json:"duration"`
}

// WaitNode suspends the flow until a resume event at or after its deadline.
type WaitNode struct {
	id       string
	duration time.Duration
}

// NewWaitNode creates a new wait node.
func NewWaitNode(id string, config map[string]any) (*WaitNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	var duration time.Duration

	switch {
	case cfg.Duration != "" && cfg.Seconds > 0:
		return nil, errors.New("only one of 'seconds' or 'duration' may be set")
	case cfg.Duration != "":
		parsed, err := time.ParseDuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration '%s': %w", cfg.Duration, err)
		}

		duration = parsed
	default:
		duration = time.Duration(cfg.Seconds * float64(time.Second))
	}

	if duration <= 0 {
		return nil, errors.New("wait duration must be positive")
	}

	return &WaitNode{id: id, duration: duration}, nil
}

// ID returns the node ID.
func (n *WaitNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *WaitNode) Kind() models.NodeKind {
	return models.NodeKindWait
}

// Duration returns how long the node suspends.
func (n *WaitNode) Duration() time.Duration {
	return n.duration
}

// Visit suspends on first arrival, for the configured duration counted from
// when the event was received. Later visits continue on the default port only
// when the scheduler resumes the conversation after the deadline.
func (n *WaitNode) Visit(v *protocol.Visit) (protocol.Outcome, error) {
	key := models.ReservedKey(models.ReservedWait, n.id)

	recorded, ok := v.Context.Variables[key].(string)
	if !ok {
		start := v.Now
		if v.Event.ReceivedAt.After(start) {
			start = v.Event.ReceivedAt
		}

		resumeAt := start.Add(n.duration).UTC()
		v.Context.Variables[key] = resumeAt.Format(time.RFC3339Nano)

		return protocol.Outcome{Suspend: true, ResumeAt: &resumeAt}, nil
	}

	resumeAt, err := time.Parse(time.RFC3339Nano, recorded)
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("%w: recorded resume time '%s': %w", models.ErrNodeConfigInvalid, recorded, err)
	}

	if !v.Event.IsResume() || v.Now.Before(resumeAt) {
		return protocol.Outcome{Suspend: true, ResumeAt: &resumeAt}, nil
	}

	delete(v.Context.Variables, key)

	return protocol.Outcome{Port: models.PortDefault}, nil
}

// OutputPorts returns the single default port.
func (n *WaitNode) OutputPorts() []string {
	return []string{models.PortDefault}
}
