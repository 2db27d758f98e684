package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invenops/ticketing/internal/api/http/handlers"
	"github.com/invenops/ticketing/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	View           *handlers.ViewHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("/:id/thread", cfg.Tickets.GetThread)
	tickets.Post("/:id/messages", cfg.Tickets.PostMessage)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.DeleteTicket)

	view := api.Group("/view")
	view.Get("", cfg.View.Snapshot)
	view.Post("/refresh", cfg.View.Refresh)
	view.Post("/thread/:id", cfg.View.OpenThread)
	view.Delete("/thread", cfg.View.CloseThread)
}
