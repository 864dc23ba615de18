package http

import (
	"github.com/nats-io/nats.go"

	"github.com/Christopher96/places-online/internal/adapters/postgres"
	"github.com/Christopher96/places-online/internal/core/ports"
	"github.com/Christopher96/places-online/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. Only Session and
// Tracker are required; the rest degrade gracefully when nil.
type Dependencies struct {
	Session *usecases.GridSession
	Tracker *usecases.ObserverTracker
	NATS    *nats.Conn
	DB      *postgres.DB
	Cache   ports.CacheService
	Journal ports.SampleJournal
}
