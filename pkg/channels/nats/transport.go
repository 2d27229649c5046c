// Package nats provides a bridge transport on core NATS subjects. Core NATS
// is at-most-once, which matches the realtime delivery guarantee.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/nats-io/nats.go"
)

type Config struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Transport publishes envelopes on one subject and listens on the same one.
type Transport struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// New connects to NATS.
func New(cfg Config, logger *slog.Logger) (*Transport, error) {
	if cfg.Subject == "" {
		cfg.Subject = events.Topic
	}

	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}

	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Name("flowengine-bridge"),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}

	return NewWithConn(conn, cfg.Subject, logger), nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(conn *nats.Conn, subject string, logger *slog.Logger) *Transport {
	return &Transport{
		conn:    conn,
		subject: subject,
		logger:  logger.With("module", "nats_transport", "subject", subject),
	}
}

func (t *Transport) Publish(_ context.Context, envelope events.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return t.conn.Publish(t.subject, data)
}

func (t *Transport) Subscribe(ctx context.Context) (<-chan events.Envelope, error) {
	out := make(chan events.Envelope, 256)

	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		var envelope events.Envelope

		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			t.logger.Warn("Dropping malformed envelope", "error", err)

			return
		}

		select {
		case out <- envelope:
		default:
			t.logger.Debug("Bridge inbox full, envelope dropped", "tenant_id", envelope.TenantID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t.subject, err)
	}

	go func() {
		<-ctx.Done()

		_ = sub.Unsubscribe()
	}()

	return out, nil
}

func (t *Transport) Close() error {
	return t.conn.Drain()
}
