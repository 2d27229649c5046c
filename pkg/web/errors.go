package web

import (
	"errors"

	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// invalidGraph reports every problem of a rejected flow document.
func invalidGraph(c fiber.Ctx, err error) error {
	detail := err.Error()

	var graphErr *models.GraphError
	if errors.As(err, &graphErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"type":     "invalid_flow",
			"title":    "Bad Request",
			"status":   fiber.StatusBadRequest,
			"detail":   detail,
			"instance": c.Path(),
			"problems": graphErr.Problems,
		})
	}

	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("invalid_flow").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func forbidden(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType("forbidden").
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func serviceUnavailable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("unavailable").
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps dispatcher, bus and store errors to problems.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, dispatcher.ErrInvalidEvent):
		return badRequest(c, err.Error())

	case errors.Is(err, dispatcher.ErrDispatcherClosed), errors.Is(err, eventbus.ErrBusClosed):
		return serviceUnavailable(c, "engine is shutting down")

	case errors.Is(err, eventbus.ErrSubscriberNotFound):
		return notFound(c, "subscriber not found")

	case errors.Is(err, eventbus.ErrDuplicateSubscriber):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsGraphNotFound(err):
		return notFound(c, "flow not found")

	case errors.Is(err, persistence.ErrInvalidID):
		return badRequest(c, err.Error())

	case models.IsGraphInvalid(err), models.IsNodeConfigInvalid(err):
		return invalidGraph(c, err)

	default:
		return internalError(c, err)
	}
}
