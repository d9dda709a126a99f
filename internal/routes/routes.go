package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
	gatherer prometheus.Gatherer,
	plugins []apps.Plugin,
	deps apps.Deps,
) {
	// Health and metrics (no auth, no rate limit)
	app.Get("/health", healthHandler.Check)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Auth, public
	// Auth-specific rate limit: 10 req/min per IP
	auth := app.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// General rate limiter for authenticated routes: 60 req/min per IP
	general := limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})

	users := app.Group("/users", general, middleware.JWTProtected(cfg))
	users.Get("/doctors", userHandler.Doctors)
	users.Get("/me", userHandler.Me)

	// Plugin routes, each under its own protected group
	for _, p := range plugins {
		group := app.Group("/"+p.ID(), general, middleware.JWTProtected(cfg))
		p.RegisterRoutes(group, deps)
	}
}
