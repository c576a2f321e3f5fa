package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasPrefix(path, "/v1/sketches"):
			ttl = "private, no-store" // Live drawing sessions, never cache

		case strings.HasPrefix(path, "/v1/landcover"):
			ttl = "public, max-age=86400" // The NLCD legend is static

		case path == "/v1/upstream":
			ttl = "public, max-age=10" // Probe results go stale fast

		case strings.Contains(path, "/analyses/"):
			ttl = "public, max-age=30" // Single report; pending ones flip to ready

		case path == "/v1/analyses":
			ttl = "public, max-age=15" // Listing changes with every run

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // 5 min default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
