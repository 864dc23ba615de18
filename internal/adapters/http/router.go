package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/Christopher96/places-online/internal/pkg/metrics"
)

const (
	requestTimeout = 5 * time.Second
	// Locating waits for the location collaborator.
	locateTimeout = 20 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestLogMiddleware())

	// Claims come from taps; 300 per minute per IP is well above a human.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/grid", GetGridHandler(deps))
	v1.Get("/grid/geojson", timeout.NewWithContext(GridGeoJSONHandler(deps), requestTimeout))
	v1.Get("/grid/tiles/:index", GetTileHandler(deps))
	v1.Post("/tiles/claim-at", ClaimAtHandler(deps))
	v1.Post("/tiles/:index/claim", ClaimTileHandler(deps))
	v1.Get("/color", GetColorHandler(deps))
	v1.Put("/color", SelectColorHandler(deps))
	v1.Get("/observer", GetObserverHandler(deps))
	v1.Post("/follow", FollowHandler(deps))
	v1.Post("/locate", timeout.NewWithContext(LocateHandler(deps), locateTimeout))
	v1.Post("/tracker/start", timeout.NewWithContext(StartTrackerHandler(deps), locateTimeout))
	v1.Post("/tracker/stop", StopTrackerHandler(deps))
	v1.Get("/journal", timeout.NewWithContext(JournalHandler(deps), requestTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps)))
	}
}
