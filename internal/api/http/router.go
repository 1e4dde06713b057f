package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/parcel-tracker/internal/api/http/handlers"
	"github.com/spec-kit/parcel-tracker/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Session  *handlers.SessionHandler
	Auth     *handlers.AuthHandler
	Packages *handlers.PackagesHandler
	Tracking *handlers.TrackingHandler
	Routes   *handlers.RoutesHandler
	Gate     *auth.SessionGate
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(cfg.Gate.Handle)

	app.Get("/login", cfg.Session.LoginPage)
	app.Get("/admin", cfg.Packages.Dashboard)

	api := app.Group("/api")
	api.Post("/auth/register", cfg.Auth.Register)
	api.Post("/auth/login", cfg.Auth.Login)
	api.Post("/session/login", cfg.Session.Login)
	api.Post("/session/logout", cfg.Session.Logout)
	api.Get("/track/:code", cfg.Tracking.Track)
	api.Get("/track/:code/events", cfg.Tracking.Stream)

	adminAPI := app.Group("/admin/api")
	adminAPI.Get("/packages", cfg.Packages.List)
	adminAPI.Post("/packages", cfg.Packages.Create)
	adminAPI.Get("/packages/:code", cfg.Packages.Get)
	adminAPI.Patch("/packages/:code", cfg.Packages.Update)
	adminAPI.Delete("/packages/:code", cfg.Packages.Delete)
	adminAPI.Post("/packages/:code/status", cfg.Packages.AdvanceStatus)
	adminAPI.Post("/routes/optimize", cfg.Routes.Optimize)
}
