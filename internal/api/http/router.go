package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casaplus/listing-service/internal/api/http/handlers"
	"github.com/casaplus/listing-service/internal/auth"
	"github.com/casaplus/listing-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Properties     *handlers.PropertiesHandler
	Statistics     *handlers.StatisticsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics serves /metrics when set.
	Metrics fiber.Handler
	// UploadsDir is served under /uploads when set.
	UploadsDir string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}
	if cfg.UploadsDir != "" {
		app.Static("/uploads", cfg.UploadsDir)
	}

	requireUser := cfg.AuthMiddleware.Handle
	requireAdmin := auth.RequireRole(domain.RoleAdmin)

	api := app.Group("/api")
	api.Post("/register", cfg.Users.Register)
	api.Post("/login", cfg.Users.Login)
	api.Post("/logout", cfg.Users.Logout)
	api.Get("/profile", requireUser, cfg.Users.Profile)
	api.Get("/statistics", requireUser, requireAdmin, cfg.Statistics.Report)

	properties := api.Group("/properties")
	properties.Get("/", cfg.Properties.List)
	properties.Get("/featured", cfg.Properties.Featured)
	properties.Get("/deleted", requireUser, requireAdmin, cfg.Properties.Deleted)
	properties.Get("/:id", cfg.Properties.Get)
	properties.Post("/", requireUser, cfg.Properties.Create)
	properties.Put("/:id", requireUser, cfg.Properties.Update)
	properties.Delete("/:id", requireUser, cfg.Properties.Delete)
	properties.Put("/:id/physical-visits", requireUser, cfg.Properties.UpdatePhysicalVisits)
}
