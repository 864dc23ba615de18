package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Tiling metrics
	SamplesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "tracker",
		Name:      "samples_processed_total",
		Help:      "Location samples consumed by the observer tracker",
	}, []string{"kind"})

	HeadingUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "tracker",
		Name:      "heading_updates_total",
		Help:      "Compass readings applied or suppressed by the heading threshold",
	}, []string{"result"})

	LocationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "tracker",
		Name:      "location_failures_total",
		Help:      "Failed fix requests by reason",
	}, []string{"reason"})

	GridRegenerations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "grid",
		Name:      "regenerations_total",
		Help:      "Times the tile grid was rebuilt around a new base tile",
	})

	GridRegenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "grid",
		Name:      "regeneration_duration_seconds",
		Help:      "Time spent building a grid",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	TilesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "grid",
		Name:      "tiles_claimed_total",
		Help:      "Tile claims that changed a tile color",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Renderer events published to the broker",
	}, []string{"subject", "status"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "places",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	JournalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "journal",
		Name:      "writes_total",
		Help:      "Samples written to the journal",
	}, []string{"kind", "status"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
