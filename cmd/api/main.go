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
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Christopher96/places-online/internal/adapters/http"
	"github.com/Christopher96/places-online/internal/adapters/location"
	natsadapter "github.com/Christopher96/places-online/internal/adapters/nats"
	"github.com/Christopher96/places-online/internal/adapters/postgres"
	"github.com/Christopher96/places-online/internal/adapters/valkey"
	"github.com/Christopher96/places-online/internal/core/ports"
	"github.com/Christopher96/places-online/internal/core/usecases"
	"github.com/Christopher96/places-online/internal/pkg/config"
	"github.com/Christopher96/places-online/internal/pkg/geospatial"
	"github.com/Christopher96/places-online/internal/pkg/logging"
	"github.com/Christopher96/places-online/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("places-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

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

	// Database, only when samples are journaled or replayed
	var db *postgres.DB
	if cfg.Tracker.Journal || cfg.Location.Source == "journal" {
		db, err = postgres.New(ctx, cfg.Database.DSN(), 10)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
	}

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, "places")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cache = vc
		defer vc.Close()
	}

	// NATS renderer
	var renderer ports.Renderer
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		renderer = pub
		defer pub.Close()
		slog.Info("publishing grid events", "session", pub.Session())
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Location
	provider, err := location.Open(ctx, cfg, db)
	if err != nil {
		log.Fatalf("location source %s: %v", cfg.Location.Source, err)
	}
	defer provider.Close()

	var journal ports.SampleJournal
	if cfg.Tracker.Journal {
		journal = postgres.NewSampleJournal(db)
	}

	// Use cases
	tiler, err := geospatial.NewTiler(cfg.Tiling.Spec())
	if err != nil {
		log.Fatalf("tiling: %v", err)
	}
	session := usecases.NewGridSession(tiler, renderer)
	tracker := usecases.NewObserverTracker(cfg.Tracker.Usecase(), session, provider, renderer, journal)

	go func() {
		if err := tracker.Start(ctx); err != nil {
			slog.Warn("observer not located, waiting for find me", "source", cfg.Location.Source, "error", err)
		}
	}()

	deps := &http.Dependencies{
		Session: session,
		Tracker: tracker,
		NATS:    natsConn,
		DB:      db,
		Cache:   cache,
		Journal: journal,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Places API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, http://localhost:19006",
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, X-Grid-Version, X-Cache",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "location_source", cfg.Location.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if err := tracker.Stop(); err != nil {
		slog.Warn("tracker stop", "error", err)
	}

	slog.Info("server stopped")
}
