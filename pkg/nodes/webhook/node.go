// Package webhook provides the node that calls an external HTTP endpoint
// through the worker pool and resumes on its result.
package webhook

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	flowtemplate "github.com/KallebyX/simao-sub001/pkg/template"
)

const (
	OutputPortSuccess = models.PortSuccess
	OutputPortError   = models.PortError

	pending = "pending"
)

// Config is the authored shape of a webhook node.
type Config struct {
	URL     string            `json:"url"     validate:"required"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`

	// Body sets extra payload fields by JSON path, e.g. "customer.name".
	Body map[string]any `json:"body"`

	// ResponseMapping copies response values into variables: name -> JSON path.
	ResponseMapping map[string]string `json:"response_mapping" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// WebhookNode emits a call_webhook effect and suspends until the result arrives.
type WebhookNode struct {
	id     string
	config Config
}

// NewWebhookNode creates a new webhook node.
func NewWebhookNode(id string, config map[string]any) (*WebhookNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(cfg.Method)

	switch cfg.Method {
	case "":
		cfg.Method = "POST"
	case "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return nil, fmt.Errorf("unsupported method '%s'", cfg.Method)
	}

	if !flowtemplate.NeedsTemplating(cfg.URL) {
		parsed, err := url.Parse(cfg.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid url '%s'", cfg.URL)
		}
	}

	for name := range cfg.ResponseMapping {
		if strings.HasPrefix(name, models.ReservedPrefix) {
			return nil, fmt.Errorf("response mapping target '%s' uses the reserved prefix '%s'", name, models.ReservedPrefix)
		}
	}

	return &WebhookNode{id: id, config: cfg}, nil
}

// ID returns the node ID.
func (n *WebhookNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *WebhookNode) Kind() models.NodeKind {
	return models.NodeKindWebhook
}

// Visit marks the call as pending and hands the request to the worker pool.
// A revisit while the call is pending suspends again without a second call.
func (n *WebhookNode) Visit(v *protocol.Visit) (protocol.Outcome, error) {
	key := models.ReservedKey(models.ReservedWebhook, n.id)

	if v.Context.Variables[key] == pending {
		return protocol.Outcome{Suspend: true}, nil
	}

	data := flowtemplate.DataFor(v.Context, v.Event)

	request, err := n.render(data)
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("%w: %w", models.ErrNodeConfigInvalid, err)
	}

	request.Payload = map[string]any{
		"tenant_id":       v.Context.TenantID,
		"conversation_id": v.Context.ConversationID,
		"flow_id":         v.Context.FlowID,
		"node_id":         n.id,
		"variables":       data["variables"],
		"event":           data["event"],
	}

	if v.Target != nil {
		if target, ok := v.Target(OutputPortSuccess); ok {
			request.OnSuccess = target
		} else if target, ok := v.Target(models.PortDefault); ok {
			request.OnSuccess = target
		}

		if target, ok := v.Target(OutputPortError); ok {
			request.OnError = target
		}
	}

	v.Context.Variables[key] = pending

	return protocol.Outcome{
		Suspend: true,
		Effect: &models.Effect{
			Kind:    models.EffectCallWebhook,
			NodeID:  n.id,
			Webhook: request,
		},
	}, nil
}

func (n *WebhookNode) render(data map[string]any) (*models.WebhookRequest, error) {
	target, err := flowtemplate.RenderString(n.config.URL, data)
	if err != nil {
		return nil, err
	}

	request := &models.WebhookRequest{
		URL:             target,
		Method:          n.config.Method,
		Headers:         make(map[string]string, len(n.config.Headers)),
		Fields:          make(map[string]any, len(n.config.Body)),
		ResponseMapping: n.config.ResponseMapping,
	}

	for name, value := range n.config.Headers {
		rendered, err := flowtemplate.RenderString(value, data)
		if err != nil {
			return nil, fmt.Errorf("header '%s': %w", name, err)
		}

		request.Headers[name] = rendered
	}

	for path, value := range n.config.Body {
		s, ok := value.(string)
		if !ok {
			request.Fields[path] = value

			continue
		}

		rendered, err := flowtemplate.Render(s, data)
		if err != nil {
			return nil, fmt.Errorf("body field '%s': %w", path, err)
		}

		request.Fields[path] = rendered
	}

	return request, nil
}

// OutputPorts returns the success, error and default ports.
func (n *WebhookNode) OutputPorts() []string {
	return []string{OutputPortSuccess, OutputPortError, models.PortDefault}
}
