package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Setup mounts every route under /api. gate is the Authenticate middleware.
// courseHandler may be nil when no relational store is configured.
func Setup(
	app *fiber.App,
	gate fiber.Handler,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	courseHandler *handlers.CourseHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth: stricter 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", gate, authHandler.Me)

	if courseHandler == nil {
		return
	}

	api.Get("/courses", gate, courseHandler.List)
	api.Post("/courses", gate, middleware.RequireRole(models.RoleTeacher), courseHandler.Create)
	api.Post("/enrollments", gate, middleware.RequireRole(models.RoleStudent), courseHandler.Enroll)
}
