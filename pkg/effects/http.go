package effects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxResponseBytes = 1 << 20

// HTTPError represents a non-2xx answer.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPWebhookCaller calls webhooks over HTTP. The request body is the
// effect payload with the node's fields set by JSON path; response values
// are copied into variables by JSON path.
type HTTPWebhookCaller struct {
	client *http.Client
}

// NewHTTPWebhookCaller creates a caller. A nil client uses one with timeout.
func NewHTTPWebhookCaller(client *http.Client, timeout time.Duration) *HTTPWebhookCaller {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPWebhookCaller{client: client}
}

func (c *HTTPWebhookCaller) Call(ctx context.Context, request models.WebhookRequest) (map[string]any, error) {
	method := request.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader

	if method != http.MethodGet {
		payload, err := BuildPayload(request)
		if err != nil {
			return nil, err
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	return MapResponse(respBody, request.ResponseMapping), nil
}

// BuildPayload encodes the request payload and applies Fields in path order.
func BuildPayload(request models.WebhookRequest) ([]byte, error) {
	payload := request.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	paths := make([]string, 0, len(request.Fields))
	for path := range request.Fields {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	for _, path := range paths {
		data, err = sjson.SetBytes(data, path, request.Fields[path])
		if err != nil {
			return nil, fmt.Errorf("failed to set field '%s': %w", path, err)
		}
	}

	return data, nil
}

// MapResponse extracts variables from a JSON response. Missing paths are
// skipped.
func MapResponse(body []byte, mapping map[string]string) map[string]any {
	if len(mapping) == 0 || !gjson.ValidBytes(body) {
		return nil
	}

	out := make(map[string]any, len(mapping))

	for name, path := range mapping {
		value := gjson.GetBytes(body, path)
		if !value.Exists() {
			continue
		}

		out[name] = value.Value()
	}

	return out
}

// HTTPMessageSender posts outbound messages to the messaging gateway at
// {base}/tenants/{tenant}/conversations/{conversation}/messages.
type HTTPMessageSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPMessageSender creates a gateway sender.
func NewHTTPMessageSender(baseURL, token string, timeout time.Duration) *HTTPMessageSender {
	return &HTTPMessageSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPMessageSender) SendMessage(ctx context.Context, tenantID, conversationID string, content models.MessageContent) error {
	body, err := json.Marshal(content)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/tenants/%s/conversations/%s/messages",
		s.baseURL, url.PathEscape(tenantID), url.PathEscape(conversationID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	return nil
}

// LogMessageSender only logs outbound messages. It is used when no gateway
// is configured.
type LogMessageSender struct {
	logger *slog.Logger
}

func NewLogMessageSender(logger *slog.Logger) *LogMessageSender {
	return &LogMessageSender{logger: logger.With("module", "log_message_sender")}
}

func (s *LogMessageSender) SendMessage(ctx context.Context, tenantID, conversationID string, content models.MessageContent) error {
	s.logger.InfoContext(ctx, "Outbound message",
		"tenant_id", tenantID,
		"conversation_id", conversationID,
		"text", content.Text,
		"media_refs", content.MediaRefs,
	)

	return nil
}
