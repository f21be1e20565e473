package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	app.Post("/auth/token", cfg.Auth.IssueToken)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireActor())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:channel_id", cfg.Tickets.GetTicket)
	tickets.Get("/:channel_id/history", cfg.Tickets.History)
	tickets.Post("/:channel_id/claim", cfg.Tickets.Claim)
	tickets.Post("/:channel_id/unclaim", cfg.Tickets.Unclaim)
	tickets.Post("/:channel_id/transfer", cfg.Tickets.Transfer)
	tickets.Post("/:channel_id/close", cfg.Tickets.Close)
	tickets.Post("/:channel_id/participants", cfg.Tickets.AddParticipant)
}
