package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fleetware/fleet_core/internal/api"
	"github.com/fleetware/fleet_core/internal/broadcast"
	"github.com/fleetware/fleet_core/internal/cache"
	"github.com/fleetware/fleet_core/internal/clock"
	"github.com/fleetware/fleet_core/internal/config"
	"github.com/fleetware/fleet_core/internal/db"
	"github.com/fleetware/fleet_core/internal/fleet"
	"github.com/fleetware/fleet_core/internal/metrics"
	"github.com/fleetware/fleet_core/internal/migrations"
	"github.com/fleetware/fleet_core/internal/storage"
)

func main() {
	log.Println("Starting Fleet Core API server...")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database connection
	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database connection established")

	if err := migrations.Run(context.Background(), pool); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	log.Println("✓ Migrations applied")

	// Initialize Redis connection
	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("✓ Redis connection established")

	// Repositories
	assignments := storage.NewAssignmentRepository(pool)
	trips := storage.NewActiveTripRepository(pool)
	buses := storage.NewBusRepository(pool)
	schedules := storage.NewScheduleRepository(pool)
	drivers := storage.NewDriverRepository(pool)
	depots := storage.NewDepotRepository(pool)

	// Live transport and services
	m := metrics.New()
	hub := broadcast.NewHub()
	fanout := broadcast.NewFanout(hub, rdb)
	fanout.OnPublish = func(delivered, dropped int) {
		m.BroadcastDelivered.Add(float64(delivered))
		m.BroadcastDropped.Add(float64(dropped))
	}

	clk := clock.RealClock{}
	a := &api.API{
		Config:       cfg,
		Registry:     fleet.NewRegistry(schedules, drivers, buses, depots, assignments),
		Lifecycle:    fleet.NewLifecycle(assignments, trips, buses, clk),
		Location:     fleet.NewLocationSync(buses, trips, schedules, fanout, clk),
		AutoAssigner: fleet.NewAutoAssigner(schedules, assignments, drivers, clk, cfg.Policy),
		TimeStatus:   fleet.NewTimeStatusDeriver(cfg.Policy),
		Assignments:  assignments,
		Schedules:    schedules,
		Buses:        buses,
		Hub:          hub,
		Metrics:      m,
		Clock:        clk,
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Fleet Core API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	a.Register(app, rdb)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📡 Live stream: http://localhost%s/live/stream?topics=bus:ID", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
