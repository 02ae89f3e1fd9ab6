package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-exam-console/internal/config"
	"github.com/noah-isme/gema-exam-console/internal/handler"
	"github.com/noah-isme/gema-exam-console/internal/middleware"
	"github.com/noah-isme/gema-exam-console/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamResultHandler       *handler.ExamResultHandler
	SubmissionDetailHandler *handler.SubmissionDetailHandler
	StudentResultHandler    *handler.StudentResultHandler
	JWTMiddleware           fiber.Handler
	HealthProbes            []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staff := middleware.RequireRole(middleware.StaffRoles...)
	writeLimit := middleware.RateLimit("grading", cfg.WriteRateLimit, time.Minute)

	if deps.ExamResultHandler != nil {
		exams := app.Group("/api/v2/exams", jwtMiddleware, staff)
		deps.ExamResultHandler.Register(exams, writeLimit)
	}

	if deps.SubmissionDetailHandler != nil {
		submissions := app.Group("/api/v2/submissions", jwtMiddleware, staff)
		deps.SubmissionDetailHandler.Register(submissions, writeLimit)
	}

	// Students may read their own overview only.
	if deps.StudentResultHandler != nil {
		students := app.Group("/api/v2/students", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin, middleware.RoleTeacher, middleware.RoleStudent))
		deps.StudentResultHandler.Register(students)
	}
}
