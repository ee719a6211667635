package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// NewApp creates the fiber app with middleware and routes installed
func NewApp(handler *Handler, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "SafeRoute API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	if accessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${locals:requestid} ${status} - ${method} ${path} (${latency})\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	SetupRoutes(app, handler)
	return app
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/safe-route", handler.GetSafeRoute)

		api.Get("/incidents", handler.GetIncidents)
		api.Post("/incidents", handler.ReportIncident)
		api.Get("/incidents/stats", handler.GetIncidentStats)
		api.Get("/incidents/trends", handler.GetIncidentTrends)
		api.Get("/incidents/nearby", handler.GetNearbyIncidents)
		api.Get("/hotspots", handler.GetHotspots)

		api.Get("/geocode/reverse", handler.ReverseGeocode)
	}
}
