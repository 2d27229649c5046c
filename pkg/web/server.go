package web

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// Server owns the fiber app.
type Server struct {
	handlers *APIHandlers
	auth     Authenticator
	ready    func(ctx context.Context) error
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer builds the routes. ready backs /readyz; nil means always ready.
func NewServer(handlers *APIHandlers, auth Authenticator, ready func(ctx context.Context) error, log *slog.Logger) *Server {
	s := &Server{
		handlers: handlers,
		auth:     auth,
		ready:    ready,
		logger:   log.With("module", "http"),
	}

	s.app = s.routes()

	return s
}

func (s *Server) routes() *fiber.App {
	h := s.handlers

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: Ready(s.ready),
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flow Engine")
	})

	api := app.Group("", RequireAuth(s.auth))

	api.Post("/events/inbound", h.InboundEvent)
	api.Post("/conversations/:id/close", h.CloseConversation)

	api.Get("/realtime", h.Realtime)
	api.Post("/realtime/:subscriberId/topics/:topic", h.JoinTopic)
	api.Delete("/realtime/:subscriberId/topics/:topic", h.LeaveTopic)

	api.Post("/flows/validate", h.ValidateFlow)
	api.Get("/flows/:id", h.GetFlow)
	api.Put("/flows/:id", h.SaveFlow)
	api.Delete("/flows/:id", h.DeleteFlow)

	api.Get("/triggers", h.ListTriggers)
	api.Post("/triggers", h.SaveTrigger)
	api.Put("/defaults", h.SaveDefaultFlows)

	api.Get("/nodes", h.Nodes)

	return app
}

// App exposes the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens until Shutdown is called.
func (s *Server) Start(port int) error {
	s.logger.Info("HTTP server listening", "port", port)

	return s.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
