package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/http"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/hydroapi"
	natsadapter "github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/nats"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/postgres"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/valkey"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/ports"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/logging"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("basinscope-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("basinscope-api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database for report storage
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go postgres.CollectPoolMetrics(ctx, db, 15*time.Second)

	// Cache for delineations and sketches. The API degrades without it:
	// no memoized delineations and no sketch sessions, but one-shot
	// analyses still work.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// NATS for queued analyses and lifecycle events
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Upstream hydrology client
	hydro := hydroapi.New(cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.Timeout)*time.Second)

	// Repos and stores
	reportRepo := postgres.NewReportRepo(db)

	var sketchStore ports.SketchStore
	var cacheSvc ports.CacheService
	if cache != nil {
		sketchStore = valkey.NewSketchStore(cache, cfg.Cache.SketchTTL)
		cacheSvc = cache
	}

	var events ports.EventPublisher
	if publisher != nil {
		events = publisher
	}

	// Use cases
	analysisSvc := usecases.NewAnalysisService(hydro, reportRepo, cacheSvc, events, cfg.Cache.DelineationTTL)
	reportSvc := usecases.NewReportService(reportRepo, cfg.Map.Zoom)

	var sketchSvc *usecases.SketchService
	if sketchStore != nil {
		sketchSvc = usecases.NewSketchService(sketchStore)
	}

	deps := &http.Dependencies{
		Sketches: sketchSvc,
		Analyses: analysisSvc,
		Reports:  reportSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
		Map:      cfg.Map,
		Upstream: cfg.Upstream,
		WebDir:   cfg.Server.WebDir,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Basinscope API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.ansp.org",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "upstream", cfg.Upstream.BaseURL)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
