package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/carbon-ledger/internal/api/http/handlers"
	"github.com/spec-kit/carbon-ledger/internal/auth"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Organizations  *handlers.OrganizationsHandler
	Trips          *handlers.TripsHandler
	Credits        *handlers.CreditsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Patch("/auth/me", cfg.Auth.UpdateMe)
	protected.Post("/auth/password/change", cfg.Auth.ChangePassword)

	orgs := protected.Group("/organizations")
	orgs.Get("/pending", auth.RequireRole(domain.RoleBankAdmin), cfg.Organizations.ListPending)
	orgs.Post("/:id/approve", auth.RequireRole(domain.RoleBankAdmin), cfg.Organizations.Approve)
	orgs.Post("/:id/reject", auth.RequireRole(domain.RoleBankAdmin), cfg.Organizations.Reject)
	orgs.Get("/:id", cfg.Organizations.Get)
	orgs.Get("/:id/credits", cfg.Organizations.Credits)
	orgs.Get("/:id/ledger", cfg.Organizations.Ledger)
	orgs.Get("/:id/employees", cfg.Organizations.ListEmployees)
	orgs.Post("/:id/employees", cfg.Organizations.AddEmployee)

	trips := protected.Group("/trips")
	trips.Post("/", cfg.Trips.Record)
	trips.Get("/", cfg.Trips.ListMine)
	trips.Get("/organization", cfg.Trips.ListOrganization)
	trips.Get("/:id", cfg.Trips.Get)
	trips.Patch("/:id", cfg.Trips.Revise)
	trips.Delete("/:id", cfg.Trips.Delete)
	trips.Post("/:id/verify", cfg.Trips.Verify)
	trips.Post("/:id/reject", cfg.Trips.Reject)

	credits := protected.Group("/credits")
	credits.Get("/market-stats", cfg.Credits.MarketStats)
	credits.Post("/transactions", auth.RequireRole(domain.RoleEmployer), cfg.Credits.Initiate)
	credits.Get("/transactions/organization", cfg.Credits.ListOrganization)
	credits.Get("/transactions/pending", cfg.Credits.ListPendingIncoming)
	credits.Get("/transactions/:id", cfg.Credits.Get)
	credits.Get("/transactions/:id/history", cfg.Credits.History)
	credits.Post("/transactions/:id/decision", cfg.Credits.Decide)
	credits.Post("/transactions/:id/approve", cfg.Credits.Approve)
	credits.Post("/transactions/:id/reject", cfg.Credits.Reject)
	credits.Post("/transactions/:id/cancel", cfg.Credits.Cancel)
	credits.Patch("/transactions/:id/payment", cfg.Credits.UpdatePayment)
}
