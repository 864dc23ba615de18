// Command ingestor bridges a positioning device onto the NATS sample
// stream, so API instances configured with location.source=nats can
// track it.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Christopher96/places-online/internal/adapters/location"
	natsadapter "github.com/Christopher96/places-online/internal/adapters/nats"
	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/pkg/config"
	"github.com/Christopher96/places-online/internal/pkg/logging"
)

const statsInterval = time.Minute

func main() {
	cfg, err := config.Load("places-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	switch cfg.Location.Source {
	case "mqtt", "nmea":
	default:
		log.Fatalf("ingestor reads from a device: location.source must be mqtt or nmea, got %q", cfg.Location.Source)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	provider, err := location.Open(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("location source %s: %v", cfg.Location.Source, err)
	}
	defer provider.Close()

	var positions, headings, failed atomic.Int64

	sub, err := provider.Subscribe(ctx,
		func(ctx context.Context, s domain.PositionSample) {
			if err := pub.PublishPosition(ctx, s); err != nil {
				failed.Add(1)
				slog.Warn("publish position", "error", err)
				return
			}
			positions.Add(1)
		},
		func(ctx context.Context, s domain.HeadingSample) {
			if err := pub.PublishHeading(ctx, s); err != nil {
				failed.Add(1)
				slog.Warn("publish heading", "error", err)
				return
			}
			headings.Add(1)
		},
	)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	slog.Info("ingestor running", "source", cfg.Location.Source, "subject", natsadapter.SubjectPositionSamples)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			slog.Info("ingestor stats",
				"positions", positions.Load(), "headings", headings.Load(), "failed", failed.Load())
		case sig := <-quit:
			slog.Info("received signal, shutting down ingestor", "signal", sig.String())
			return
		}
	}
}
