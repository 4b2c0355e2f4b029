package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/api/http/handlers"
	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Reports        *handlers.ReportsHandler
	Assets         *handlers.AssetsHandler
	Units          *handlers.UnitsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Post("/users", auth.RequireSuperAdmin(), cfg.Auth.CreateUser)
	protected.Get("/units", cfg.Units.List)
	protected.Post("/units", auth.RequireSuperAdmin(), cfg.Units.Create)

	tickets := protected.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Post("/query", cfg.Tickets.QueryTickets)
	tickets.Post("/export", cfg.Tickets.ExportTickets)
	tickets.Get("/custom/:customId", auth.RequireSuperAdmin(), cfg.Tickets.GetByCustomID)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/priority", cfg.Tickets.UpdatePriority)
	tickets.Patch("/:id/estimate", cfg.Tickets.UpdateEstimate)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/images", cfg.Tickets.AddImages)

	reports := protected.Group("/reports")
	reports.Post("/markets", auth.RequireUnitKind(domain.UnitKindMarket), cfg.Reports.SubmitMarketReport)
	reports.Post("/clear", cfg.Reports.Clear)
	reports.Get("/current", cfg.Reports.Current)
	reports.Get("/current/export", cfg.Reports.ExportCurrent)

	protected.Get("/assets/:key", cfg.Assets.Get)
}
