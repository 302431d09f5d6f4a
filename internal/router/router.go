package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/classroomlabs/peergrade-api/internal/config"
	"github.com/classroomlabs/peergrade-api/internal/handler"
	"github.com/classroomlabs/peergrade-api/internal/middleware"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SectionHandler    *handler.SectionHandler
	GroupHandler      *handler.GroupHandler
	SubmissionHandler *handler.SubmissionHandler
	ScoreHandler      *handler.ScoreHandler
	RubricHandler     *handler.RubricHandler
	ReportHandler     *handler.ReportHandler
	RealtimeHandler   *handler.RealtimeHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Sections carry the grading workflow: membership, groups, submissions,
	// and reports all hang off a section.
	if deps.SectionHandler != nil {
		sections := api.Group("/sections", jwtMiddleware)
		deps.SectionHandler.Register(sections)

		if deps.GroupHandler != nil {
			deps.GroupHandler.Register(sections)
		}
		if deps.SubmissionHandler != nil {
			deps.SubmissionHandler.Register(sections)
		}
		if deps.ReportHandler != nil {
			deps.ReportHandler.Register(sections)
		}
	}

	if deps.ScoreHandler != nil {
		scores := api.Group("/scores", jwtMiddleware)
		deps.ScoreHandler.Register(scores)
	}

	if deps.RubricHandler != nil {
		staffOnly := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)

		rubrics := api.Group("/rubrics", jwtMiddleware, staffOnly)
		deps.RubricHandler.Register(rubrics)

		criteria := api.Group("/criteria", jwtMiddleware, staffOnly)
		deps.RubricHandler.RegisterCriteria(criteria)

		assignments := api.Group("/assignments", jwtMiddleware, staffOnly)
		deps.RubricHandler.RegisterAssignments(assignments)
	}

	if deps.RealtimeHandler != nil {
		realtime := api.Group("/realtime", jwtMiddleware)
		deps.RealtimeHandler.Register(realtime)
	}
}
