// Package api exposes the trip-assignment and live-location REST surface.
package api

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fleetware/fleet_core/internal/broadcast"
	"github.com/fleetware/fleet_core/internal/cache"
	"github.com/fleetware/fleet_core/internal/clock"
	"github.com/fleetware/fleet_core/internal/config"
	"github.com/fleetware/fleet_core/internal/db"
	"github.com/fleetware/fleet_core/internal/fleet"
	"github.com/fleetware/fleet_core/internal/metrics"
	"github.com/fleetware/fleet_core/internal/middleware"
	"github.com/fleetware/fleet_core/internal/storage"
)

// API bundles the handlers' dependencies.
type API struct {
	Config       *config.Config
	Registry     *fleet.Registry
	Lifecycle    *fleet.Lifecycle
	Location     *fleet.LocationSync
	AutoAssigner *fleet.AutoAssigner
	TimeStatus   *fleet.TimeStatusDeriver
	Assignments  storage.AssignmentRepository
	Schedules    storage.ScheduleRepository
	Buses        storage.BusRepository
	Hub          *broadcast.Hub
	Metrics      *metrics.Metrics
	Clock        clock.Clock

	validate *validator.Validate
}

func (a *API) validator() *validator.Validate {
	if a.validate == nil {
		a.validate = validator.New()
	}
	return a.validate
}

// Register mounts the REST surface. rdb may be nil; the telemetry rate
// limiter then passes everything through.
func (a *API) Register(app *fiber.App, rdb *redis.Client) {
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		a.Metrics.HTTPRequestsTotal.WithLabelValues(
			c.Method(), c.Route().Path, strconv.Itoa(c.Response().StatusCode()),
		).Inc()
		return err
	})

	app.Get("/health", a.Health)
	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})))

	auth := middleware.AuthMiddleware(a.Config.JWTSecret)
	driverOnly := middleware.RequireRole(middleware.RoleDriver)
	staffOnly := middleware.RequireRole(middleware.RoleDepotAdmin)

	// Rider read paths, no auth.
	app.Get("/schedules", a.ListSchedules)
	app.Get("/schedules/upcoming", a.UpcomingSchedules)
	app.Get("/schedules/active-trips", a.ActiveTrips)
	app.Get("/buses/:id/location", a.BusLocation)
	app.Get("/live/stream", a.LiveStream)

	// Driver trip lifecycle.
	app.Post("/schedules/:id/start", auth, driverOnly, a.StartTrip)
	app.Put("/schedules/:id/update", auth, driverOnly, a.UpdateTrip)
	app.Post("/schedules/:id/end", auth, driverOnly, a.EndTrip)
	app.Get("/schedules/my-today", auth, driverOnly, a.MyTodayAssignments)

	// Telemetry.
	app.Put("/buses/:id/location", auth, driverOnly,
		middleware.TelemetryRateLimit(rdb, 10), a.UpdateBusLocation)

	// Depot operations.
	app.Post("/assignments/assign", auth, staffOnly, a.AssignTrip)
	app.Post("/assignments/auto", auth, staffOnly, a.AutoAssign)
}

// Health handles GET /health with database and Redis checks.
func (a *API) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbStatus := "ok"
	dbErr := db.HealthCheck(ctx)
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisStatus := "ok"
	redisErr := cache.HealthCheck(ctx)
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
