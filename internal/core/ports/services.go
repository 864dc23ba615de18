package ports

import (
	"context"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
)

// PositionHandler receives position samples from a LocationProvider.
type PositionHandler func(ctx context.Context, s domain.PositionSample)

// HeadingHandler receives compass samples from a LocationProvider.
type HeadingHandler func(ctx context.Context, s domain.HeadingSample)

// Subscription is a live sample stream; Close tears it down.
type Subscription interface {
	Close() error
}

// LocationProvider supplies fixes and sample streams (GPS receiver, MQTT
// feed, journal replay). RequestFix returns domain.ErrPermissionDenied or
// domain.ErrLocationUnavailable when no fix can be produced.
type LocationProvider interface {
	RequestFix(ctx context.Context) (domain.GeoPoint, error)
	Subscribe(ctx context.Context, onPosition PositionHandler, onHeading HeadingHandler) (Subscription, error)
}

// Renderer consumes core state changes as plain data.
type Renderer interface {
	GridChanged(ctx context.Context, grid domain.Grid) error
	TileClaimed(ctx context.Context, tile domain.Tile, version uint64) error
	ObserverChanged(ctx context.Context, obs domain.ObserverState) error
	CenterCamera(ctx context.Context, center domain.GeoPoint, duration time.Duration) error
	RotateCamera(ctx context.Context, heading float64, duration time.Duration) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
