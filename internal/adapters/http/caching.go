package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// versionETag derives a strong ETag from the grid version. Every claim and
// regeneration bumps the version, so equal versions mean equal grids.
func versionETag(version uint64) string {
	return `"v` + itoa(version) + `"`
}

// notModified sets the ETag and reports whether the client copy is current.
func notModified(c *fiber.Ctx, version uint64) bool {
	etag := versionETag(version)
	c.Set(fiber.HeaderETag, etag)
	c.Set("X-Grid-Version", itoa(version))
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		c.Status(fiber.StatusNotModified)
		return true
	}
	return false
}

// CachingMiddleware sets Cache-Control on GET responses that did not set one.
// Grid and observer state change with every sample, so clients revalidate.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "no-store"
		case path == "/metrics":
			ttl = "no-cache"
		case strings.HasPrefix(path, "/v1/grid"):
			ttl = "no-cache" // revalidate with ETag
		case path == "/v1/observer":
			ttl = "no-store"
		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
