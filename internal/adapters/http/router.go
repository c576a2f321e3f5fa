package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// The one-POST surface predating sketches is kept for a year.
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{
			Path:        "/v1/analyze",
			SunsetDate:  time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
			Alternative: "/v1/analyses",
		},
	}))

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout for local operations
	v1 := app.Group("/v1")
	v1.Post("/sketches", timeout.NewWithContext(CreateSketchHandler(deps), 15*time.Second))
	v1.Get("/sketches/:id", timeout.NewWithContext(GetSketchHandler(deps), 15*time.Second))
	v1.Delete("/sketches/:id", timeout.NewWithContext(DeleteSketchHandler(deps), 15*time.Second))
	v1.Post("/sketches/:id/features", timeout.NewWithContext(AddFeatureHandler(deps), 15*time.Second))
	v1.Delete("/sketches/:id/features", timeout.NewWithContext(ClearFeaturesHandler(deps), 15*time.Second))
	v1.Delete("/sketches/:id/features/:featureID", timeout.NewWithContext(RemoveFeatureHandler(deps), 15*time.Second))
	v1.Get("/analyses", timeout.NewWithContext(ListAnalysesHandler(deps), 15*time.Second))
	v1.Get("/analyses/:id", timeout.NewWithContext(GetAnalysisHandler(deps), 15*time.Second))
	v1.Delete("/analyses/:id", timeout.NewWithContext(DeleteAnalysisHandler(deps), 15*time.Second))
	v1.Get("/landcover/classes", timeout.NewWithContext(LandCoverClassesHandler(), 15*time.Second))
	v1.Get("/upstream", timeout.NewWithContext(UpstreamStatusHandler(deps), 15*time.Second))

	// Synchronous analyses block on the hydrology service; give them
	// the full upstream budget plus slack for conversion and storage.
	runBudget := time.Duration(deps.Upstream.Timeout)*time.Second + 30*time.Second
	v1.Post("/analyses", timeout.NewWithContext(CreateAnalysisHandler(deps), runBudget))
	v1.Post("/analyze", timeout.NewWithContext(AnalyzeHandler(deps), runBudget))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))

	// The map web app. Registered last so API routes win.
	if deps.WebDir != "" {
		app.Static("/", deps.WebDir)
	}
}
