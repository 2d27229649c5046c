package web

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/gofiber/fiber/v3"
)

// Realtime streams the tenant's events as server-sent events. Topics come
// from ?topics=ticket,notification; ?id= picks the subscriber id, otherwise
// one is generated. The first event names the subscriber so the client can
// join and leave topics later.
func (h *APIHandlers) Realtime(c fiber.Ctx) error {
	principal := principalFrom(c)

	var topics []string

	for _, topic := range strings.Split(c.Query("topics"), ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}

	if len(topics) == 0 {
		topics = defaultTopics
	}

	sub, err := h.bus.Subscribe(principal.CompanyID, c.Query("id"), topics)
	if err != nil {
		return handleEngineError(c, err)
	}

	logger := h.logger.With("tenant_id", principal.CompanyID, "subscriber_id", sub.ID())
	logger.Debug("Realtime stream opened", "topics", topics)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	keepAlive := h.keepAlive

	c.Response().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.bus.Unsubscribe(sub)
		defer logger.Debug("Realtime stream closed", "dropped", sub.Dropped())

		if err := writeSSE(w, "subscribed", fiber.Map{"subscriberId": sub.ID(), "topics": sub.Topics()}); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					return
				}

				message := RealtimeMessage{
					Action:  string(event.Action),
					Entity:  string(event.Entity),
					Topic:   event.Topic,
					Payload: event.Payload,
				}

				if err := writeSSE(w, string(event.GetType()), message); err != nil {
					return
				}

			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}

				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func writeSSE(w *bufio.Writer, name string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, body); err != nil {
		return err
	}

	return w.Flush()
}

// JoinTopic adds a topic, e.g. a ticket status or conversation id, to a
// connected subscriber.
func (h *APIHandlers) JoinTopic(c fiber.Ctx) error {
	sub, err := h.bus.Lookup(principalFrom(c).CompanyID, c.Params("subscriberId"))
	if err != nil {
		return handleEngineError(c, err)
	}

	sub.Join(c.Params("topic"))

	return c.JSON(fiber.Map{"subscriberId": sub.ID(), "topics": sub.Topics()})
}

func (h *APIHandlers) LeaveTopic(c fiber.Ctx) error {
	sub, err := h.bus.Lookup(principalFrom(c).CompanyID, c.Params("subscriberId"))
	if err != nil {
		return handleEngineError(c, err)
	}

	sub.Leave(c.Params("topic"))

	return c.JSON(fiber.Map{"subscriberId": sub.ID(), "topics": sub.Topics()})
}

var defaultTopics = []string{events.TopicTicket, events.TopicNotification}
