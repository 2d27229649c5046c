// Package web provides the HTTP surface of the engine: event intake,
// conversation close, flow management and the realtime stream.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/interpreter"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Dispatcher is the engine entry point. *dispatcher.Dispatcher implements it.
type Dispatcher interface {
	OnInboundEvent(ctx context.Context, event models.InboundEvent) (<-chan dispatcher.Outcome, error)
	Close(ctx context.Context, tenantID, conversationID string) (<-chan dispatcher.Outcome, error)
}

// FlowStore reads and writes flow definitions.
type FlowStore interface {
	persistence.GraphStore
	persistence.GraphWriter
}

type APIHandlers struct {
	dispatcher  Dispatcher
	flows       FlowStore
	bus         *eventbus.Bus
	registry    *registry.Registry
	validator   *validator.Validate
	logger      *slog.Logger
	waitTimeout time.Duration
	keepAlive   time.Duration
}

func NewAPIHandlers(
	d Dispatcher,
	flows FlowStore,
	bus *eventbus.Bus,
	reg *registry.Registry,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		dispatcher:  d,
		flows:       flows,
		bus:         bus,
		registry:    reg,
		validator:   validate,
		logger:      logger.With("module", "web"),
		waitTimeout: 10 * time.Second,
		keepAlive:   15 * time.Second,
	}
}

// InboundEvent hands a channel message to the dispatcher. With ?wait=true
// the response carries the outcome of the event.
func (h *APIHandlers) InboundEvent(c fiber.Ctx) error {
	var req InboundEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	principal := principalFrom(c)

	done, err := h.dispatcher.OnInboundEvent(c.Context(), req.ToEvent(principal.CompanyID))
	if err != nil {
		return handleEngineError(c, err)
	}

	return h.respond(c, done)
}

// CloseConversation cancels the automated flow of a conversation.
func (h *APIHandlers) CloseConversation(c fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return badRequest(c, "Conversation ID is required")
	}

	principal := principalFrom(c)

	done, err := h.dispatcher.Close(c.Context(), principal.CompanyID, conversationID)
	if err != nil {
		return handleEngineError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Conversation close requested",
		"tenant_id", principal.CompanyID, "conversation_id", conversationID, "user_id", principal.UserID)

	return h.respond(c, done)
}

func (h *APIHandlers) respond(c fiber.Ctx, done <-chan dispatcher.Outcome) error {
	wait, err := strconv.ParseBool(c.Query("wait", "false"))
	if err != nil {
		return badRequest(c, "wait must be a boolean")
	}

	if !wait {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
	}

	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()

	select {
	case outcome := <-done:
		return c.JSON(newOutcomeResponse(outcome))
	case <-timer.C:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true, "pending": true})
	}
}

// ValidateFlow compiles a flow document without storing it.
func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	graph, err := h.decodeFlow(c)
	if err != nil {
		return invalidGraph(c, err)
	}

	return c.JSON(fiber.Map{
		"valid":       true,
		"id":          graph.ID,
		"entryNodeId": graph.EntryNode(),
		"nodes":       len(graph.Nodes),
	})
}

// SaveFlow validates and stores a flow document of the caller's tenant.
// Running executions keep their snapshot until their next step.
func (h *APIHandlers) SaveFlow(c fiber.Ctx) error {
	graph, err := h.decodeFlow(c)
	if err != nil {
		return invalidGraph(c, err)
	}

	principal := principalFrom(c)

	if graph.TenantID != principal.CompanyID {
		return forbidden(c, "flow belongs to another tenant")
	}

	if id := c.Params("id"); id != graph.ID {
		return badRequest(c, fmt.Sprintf("flow id %q does not match path id %q", graph.ID, id))
	}

	graph.UpdatedAt = time.Now().UTC()

	if err := h.flows.SaveGraph(c.Context(), graph); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(graph)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	graph, err := h.flows.LoadGraph(c.Context(), principalFrom(c).CompanyID, c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(graph)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	err := h.flows.DeleteGraph(c.Context(), principalFrom(c).CompanyID, c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) decodeFlow(c fiber.Ctx) (*models.FlowGraph, error) {
	graph, err := models.DecodeGraph(c.Body())
	if err != nil {
		return nil, err
	}

	if _, err := interpreter.Compile(h.registry, graph); err != nil {
		return nil, err
	}

	return graph, nil
}

// SaveTrigger creates or replaces a campaign trigger.
func (h *APIHandlers) SaveTrigger(c fiber.Ctx) error {
	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	principal := principalFrom(c)

	_, err := h.flows.LoadGraph(c.Context(), principal.CompanyID, req.FlowID)
	if err != nil {
		return handleEngineError(c, err)
	}

	trigger := &models.Trigger{
		ID:        req.ID,
		TenantID:  principal.CompanyID,
		ChannelID: req.ChannelID,
		Name:      req.Name,
		Phrase:    req.Phrase,
		FlowID:    req.FlowID,
		Status:    req.Status,
	}

	if trigger.Status == "" {
		trigger.Status = models.TriggerStatusActive
	}

	if err := h.flows.SaveTrigger(c.Context(), trigger); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) ListTriggers(c fiber.Ctx) error {
	triggers, err := h.flows.Triggers(c.Context(), principalFrom(c).CompanyID, c.Query("channelId"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(triggers)
}

// SaveDefaultFlows sets the welcome and no-phrase flows.
func (h *APIHandlers) SaveDefaultFlows(c fiber.Ctx) error {
	var req DefaultFlowsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	principal := principalFrom(c)

	for _, flowID := range []string{req.WelcomeFlowID, req.NoPhraseFlowID} {
		if flowID == "" {
			continue
		}

		if _, err := h.flows.LoadGraph(c.Context(), principal.CompanyID, flowID); err != nil {
			return handleEngineError(c, err)
		}
	}

	defaults := &models.DefaultFlows{
		TenantID:       principal.CompanyID,
		ChannelID:      req.ChannelID,
		WelcomeFlowID:  req.WelcomeFlowID,
		NoPhraseFlowID: req.NoPhraseFlowID,
	}

	if err := h.flows.SaveDefaultFlows(c.Context(), defaults); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(defaults)
}

// Nodes lists the node kinds with their config schemas.
func (h *APIHandlers) Nodes(c fiber.Ctx) error {
	return c.JSON(h.registry.Catalogue())
}

// Ready reports whether the stores answer.
func Ready(check func(ctx context.Context) error) func(c fiber.Ctx) bool {
	return func(c fiber.Ctx) bool {
		if check == nil {
			return true
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		err := check(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Default().Warn("Readiness check failed", "error", err)
		}

		return err == nil
	}
}
