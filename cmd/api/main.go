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
	"github.com/passbi/od_dashboard/internal/api"
	"github.com/passbi/od_dashboard/internal/cache"
	"github.com/passbi/od_dashboard/internal/config"
	"github.com/passbi/od_dashboard/internal/db"
	"github.com/passbi/od_dashboard/internal/middleware"
	"github.com/passbi/od_dashboard/internal/pipeline"
	"github.com/passbi/od_dashboard/internal/zones"
)

func main() {
	log.Println("Starting OD dashboard API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store := pipeline.GetStore()
	zoneOpts := zones.Options{Duplicates: cfg.Duplicates}
	checks := make(map[string]api.HealthCheck)

	switch cfg.DataSource {
	case config.SourceDB:
		pool, err := db.GetDB()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("✓ Database connection established")

		if err := db.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		if err := store.LoadFromDB(context.Background(), db.NewRepository(pool), zoneOpts); err != nil {
			log.Fatalf("Failed to load datasets: %v", err)
		}
		checks["database"] = db.HealthCheck
	default:
		ds, err := store.LoadFiles(cfg.DatasetName, cfg.ZonesPath, cfg.Tables, zoneOpts)
		if err != nil {
			log.Fatalf("Failed to load dataset from files: %v", err)
		}
		log.Printf("✓ Dataset %s loaded (%d zones, modes %v)", ds.Info.ID, ds.Info.ZonesCount, ds.Info.Modes)
	}

	var viewCache cache.ViewCache
	if cfg.EnableCache || cfg.EnableRateLimit {
		if _, err := cache.GetClient(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.Close()
		log.Println("✓ Redis connection established")
		checks["redis"] = cache.HealthCheck
	}
	if cfg.EnableCache {
		viewCache = cache.NewRedisViewCache(cfg.CacheTTL)
	}

	handler := api.NewHandler(store, pipeline.NewPreparer(cfg.PreparedCacheSize, cfg.PreparedCacheTTL), viewCache)
	handler.Options = pipeline.BuildOptions{DisplayCap: cfg.DisplayCap, Zoom: cfg.MapZoom}
	handler.Checks = checks

	app := fiber.New(fiber.Config{
		AppName:      "OD Dashboard API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	if cfg.EnableRateLimit {
		rdb, _ := cache.GetClient()
		app.Use(middleware.RateLimitMiddleware(&middleware.RedisCounter{Client: rdb}, middleware.Limits{
			PerSecond: cfg.RateLimitPerSecond,
			PerDay:    cfg.RateLimitPerDay,
		}))
	}

	handler.Register(app)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Datasets: http://localhost%s/v1/datasets", addr)
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
