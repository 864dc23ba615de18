package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
	"github.com/Christopher96/places-online/internal/pkg/geospatial"
	"github.com/Christopher96/places-online/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/Christopher96/places-online/internal/core/usecases")

// GridSession owns the current grid and mediates tile claims.
type GridSession struct {
	mu       sync.RWMutex
	tiler    *geospatial.Tiler
	renderer ports.Renderer
	grid     *domain.Grid
	version  uint64
	selected domain.Color
	now      func() time.Time
}

// NewGridSession creates a GridSession. renderer may be nil.
func NewGridSession(tiler *geospatial.Tiler, renderer ports.Renderer) *GridSession {
	return &GridSession{tiler: tiler, renderer: renderer, now: time.Now}
}

// Tiler returns the geometry engine the session builds grids with.
func (s *GridSession) Tiler() *geospatial.Tiler {
	return s.tiler
}

// RegenerateIfNeeded rebuilds the grid around base when no grid exists yet
// or base differs from the current origin, and reports whether it did.
// Claimed colors are not carried over to the new grid.
func (s *GridSession) RegenerateIfNeeded(ctx context.Context, base domain.GeoPoint) bool {
	base = s.tiler.BaseTile(base)

	s.mu.Lock()
	if s.grid != nil && s.grid.Origin.Equal(base) {
		s.mu.Unlock()
		return false
	}

	_, span := tracer.Start(ctx, "GridSession.Regenerate", trace.WithAttributes(
		attribute.Float64("origin.lat", base.Lat),
		attribute.Float64("origin.lon", base.Lon),
	))
	start := time.Now()

	s.version++
	grid := &domain.Grid{
		Origin:      base,
		Tiles:       s.tiler.BuildTiles(base),
		Version:     s.version,
		GeneratedAt: s.now(),
	}
	s.grid = grid
	snapshot := grid.Clone()
	s.mu.Unlock()

	metrics.GridRegenerations.Inc()
	metrics.GridRegenerationDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("tiles", len(snapshot.Tiles)))
	span.End()

	slog.DebugContext(ctx, "grid regenerated",
		"origin_lat", base.Lat, "origin_lon", base.Lon,
		"tiles", len(snapshot.Tiles), "version", snapshot.Version)

	if s.renderer != nil {
		if err := s.renderer.GridChanged(ctx, snapshot); err != nil {
			slog.WarnContext(ctx, "renderer grid update failed", "error", err)
		}
	}
	return true
}

// ClaimTile colors the tile at index and returns the claimed tile with the
// grid version that includes it. It fails with domain.ErrIndexOutOfRange
// when the index is outside the current grid and leaves state untouched.
// Claiming a tile again with the same color changes nothing.
func (s *GridSession) ClaimTile(ctx context.Context, index int, color domain.Color) (domain.Tile, uint64, error) {
	if color == "" {
		return domain.Tile{}, 0, domain.ErrColorRequired
	}

	s.mu.Lock()
	if s.grid == nil || index < 0 || index >= len(s.grid.Tiles) {
		size := 0
		if s.grid != nil {
			size = len(s.grid.Tiles)
		}
		s.mu.Unlock()
		return domain.Tile{}, 0, fmt.Errorf("%w: %d not in [0, %d)", domain.ErrIndexOutOfRange, index, size)
	}

	tile := &s.grid.Tiles[index]
	if tile.ClaimedColor == color {
		claimed, version := *tile, s.version
		s.mu.Unlock()
		return claimed, version, nil
	}
	tile.ClaimedColor = color
	s.version++
	s.grid.Version = s.version
	claimed := *tile
	version := s.version
	s.mu.Unlock()

	metrics.TilesClaimed.Inc()

	if s.renderer != nil {
		if err := s.renderer.TileClaimed(ctx, claimed, version); err != nil {
			slog.WarnContext(ctx, "renderer claim update failed", "index", index, "error", err)
		}
	}
	return claimed, version, nil
}

// SelectColor stores the color chosen in the color picker.
func (s *GridSession) SelectColor(color domain.Color) error {
	if color == "" {
		return domain.ErrColorRequired
	}
	s.mu.Lock()
	s.selected = color
	s.mu.Unlock()
	return nil
}

// SelectedColor returns the color picked last, or "" if none.
func (s *GridSession) SelectedColor() domain.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// ClaimWithSelected claims the tile at index with the selected color, the
// way a tap on the map does.
func (s *GridSession) ClaimWithSelected(ctx context.Context, index int) (domain.Tile, uint64, error) {
	return s.ClaimTile(ctx, index, s.SelectedColor())
}

// Snapshot returns a copy of the current grid, or false before the first fix.
func (s *GridSession) Snapshot() (domain.Grid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grid == nil {
		return domain.Grid{}, false
	}
	return s.grid.Clone(), true
}

// Version returns the current grid version; 0 means no grid yet.
func (s *GridSession) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// TileAt returns the tile whose polygon contains p.
func (s *GridSession) TileAt(p domain.GeoPoint) (domain.Tile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grid == nil {
		return domain.Tile{}, false
	}
	for _, t := range s.grid.Tiles {
		if t.Bounds().Contains(p) {
			return t, true
		}
	}
	return domain.Tile{}, false
}
