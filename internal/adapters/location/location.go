// Package location builds the configured LocationProvider.
package location

import (
	"context"
	"fmt"

	"github.com/Christopher96/places-online/internal/adapters/mqtt"
	natsadapter "github.com/Christopher96/places-online/internal/adapters/nats"
	"github.com/Christopher96/places-online/internal/adapters/nmea"
	"github.com/Christopher96/places-online/internal/adapters/postgres"
	"github.com/Christopher96/places-online/internal/core/ports"
	"github.com/Christopher96/places-online/internal/pkg/config"
)

// Provider is a LocationProvider together with its teardown.
type Provider struct {
	ports.LocationProvider
	close func()
}

// Close releases the underlying connection or device.
func (p *Provider) Close() {
	if p.close != nil {
		p.close()
	}
}

// Open connects the source named by location.source. The journal source
// needs db; the other sources ignore it.
func Open(ctx context.Context, cfg *config.Config, db *postgres.DB) (*Provider, error) {
	switch cfg.Location.Source {
	case "mqtt":
		src := mqtt.New(mqtt.Options{
			Broker:        cfg.MQTT.Broker,
			ClientID:      cfg.MQTT.ClientID,
			PositionTopic: cfg.MQTT.PositionTopic,
			HeadingTopic:  cfg.MQTT.HeadingTopic,
			FixTimeout:    cfg.Location.FixTimeout,
		})
		if err := src.Connect(); err != nil {
			return nil, err
		}
		return &Provider{LocationProvider: src, close: src.Close}, nil

	case "nmea":
		src := nmea.New(nmea.SerialPort(cfg.NMEA.Port, cfg.NMEA.BaudRate), cfg.Location.FixTimeout)
		return &Provider{LocationProvider: src, close: src.Close}, nil

	case "nats":
		src, err := natsadapter.NewSource(cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		return &Provider{LocationProvider: src, close: src.Close}, nil

	case "journal":
		if db == nil {
			return nil, fmt.Errorf("journal source needs a database")
		}
		journal := postgres.NewSampleJournal(db)
		return &Provider{LocationProvider: postgres.NewReplaySource(journal, cfg.Location.ReplaySince, cfg.Location.ReplaySpeed)}, nil

	default:
		return nil, fmt.Errorf("unknown location source %q", cfg.Location.Source)
	}
}
