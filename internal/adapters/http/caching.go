package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on successful GET responses unless the
// handler already did.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "no-cache"
	case path == "/metrics":
		return "no-cache"
	case path == "/v1/map/nearby":
		return "public, max-age=60" // Depends on query parameters
	case path == "/v1/map/bounds":
		return "public, max-age=300" // Only moves when listings are approved or removed
	case strings.HasPrefix(path, "/v1/map/"):
		return "public, max-age=120"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	}
	return ""
}
