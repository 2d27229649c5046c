// Package message provides the node that sends a templated message to the conversation.
package message

import (
	"errors"
	"fmt"
	"text/template"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	flowtemplate "github.com/KallebyX/simao-sub001/pkg/template"
)

// Config is the authored shape of a message node.
type Config struct {
	Text      string   `json:"text"`
	MediaRefs []string `json:"media_refs" validate:"omitempty,dive,required"`
}

// MessageNode renders its text against the conversation and emits a send effect.
type MessageNode struct {
	id     string
	config Config
	tmpl   *template.Template
}

// NewMessageNode creates a new message node.
func NewMessageNode(id string, config map[string]any) (*MessageNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	if cfg.Text == "" && len(cfg.MediaRefs) == 0 {
		return nil, errors.New("missing required field 'text' or 'media_refs'")
	}

	node := &MessageNode{id: id, config: cfg}

	if flowtemplate.NeedsTemplating(cfg.Text) {
		tmpl, err := flowtemplate.Parse(cfg.Text)
		if err != nil {
			return nil, err
		}

		node.tmpl = tmpl
	}

	return node, nil
}

// ID returns the node ID.
func (n *MessageNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *MessageNode) Kind() models.NodeKind {
	return models.NodeKindMessage
}

// Visit renders the message and continues on the default port.
func (n *MessageNode) Visit(v *protocol.Visit) (protocol.Outcome, error) {
	text := n.config.Text

	if n.tmpl != nil {
		rendered, err := flowtemplate.Execute(n.tmpl, flowtemplate.DataFor(v.Context, v.Event))
		if err != nil {
			return protocol.Outcome{}, fmt.Errorf("%w: %w", models.ErrNodeConfigInvalid, err)
		}

		text = rendered
	}

	return protocol.Outcome{
		Port: models.PortDefault,
		Effect: &models.Effect{
			Kind:   models.EffectSendMessage,
			NodeID: n.id,
			Message: &models.MessageContent{
				Text:      text,
				MediaRefs: append([]string(nil), n.config.MediaRefs...),
			},
		},
	}, nil
}

// OutputPorts returns the single default port.
func (n *MessageNode) OutputPorts() []string {
	return []string{models.PortDefault}
}
