// Command recorder journals every sample on the NATS sample stream into
// Postgres, so walks can be replayed with location.source=journal.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/Christopher96/places-online/internal/adapters/nats"
	"github.com/Christopher96/places-online/internal/adapters/postgres"
	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/pkg/config"
	"github.com/Christopher96/places-online/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("places-recorder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	journal := postgres.NewSampleJournal(db)

	src, err := natsadapter.NewSource(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer src.Close()

	sub, err := src.Subscribe(ctx,
		func(ctx context.Context, s domain.PositionSample) {
			if err := journal.RecordPosition(ctx, s); err != nil {
				slog.Warn("record position", "error", err)
			}
		},
		func(ctx context.Context, s domain.HeadingSample) {
			if err := journal.RecordHeading(ctx, s); err != nil {
				slog.Warn("record heading", "error", err)
			}
		},
	)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	slog.Info("recorder running", "stream", natsadapter.StreamSamples)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down recorder", "signal", sig.String())
}
