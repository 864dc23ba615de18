package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/usecases"
	"github.com/Christopher96/places-online/internal/pkg/geospatial"
)

func newSession(t *testing.T, renderer *mockRenderer) *usecases.GridSession {
	t.Helper()
	tiler, err := geospatial.NewTiler(domain.DefaultTileSpec())
	if err != nil {
		t.Fatal(err)
	}
	if renderer == nil {
		return usecases.NewGridSession(tiler, nil)
	}
	return usecases.NewGridSession(tiler, renderer)
}

func TestGridSession_RegenerateIfNeeded(t *testing.T) {
	renderer := &mockRenderer{}
	s := newSession(t, renderer)
	ctx := context.Background()

	if !s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432}) {
		t.Fatal("expected first call to regenerate")
	}
	if s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432}) {
		t.Error("expected second call with same base to be a no-op")
	}
	// Different raw point, same coarse base tile.
	if s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.7882, Lon: -122.4318}) {
		t.Error("expected no regeneration within the same base tile")
	}
	if len(renderer.grids) != 1 {
		t.Fatalf("expected 1 grid notification, got %d", len(renderer.grids))
	}

	grid, ok := s.Snapshot()
	if !ok {
		t.Fatal("expected a grid")
	}
	if len(grid.Tiles) != 25 || grid.Version != 1 {
		t.Errorf("unexpected grid: %d tiles, version %d", len(grid.Tiles), grid.Version)
	}

	if !s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.789, Lon: -122.432}) {
		t.Error("expected regeneration for a new base tile")
	}
	if s.Version() != 2 {
		t.Errorf("expected version 2, got %d", s.Version())
	}
}

func TestGridSession_RegenerateDropsClaims(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()

	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})
	if _, _, err := s.ClaimTile(ctx, 3, "#FF0000"); err != nil {
		t.Fatal(err)
	}
	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.789, Lon: -122.432})

	grid, _ := s.Snapshot()
	for _, tile := range grid.Tiles {
		if tile.Claimed() {
			t.Fatalf("tile %d kept its claim across regeneration", tile.Index)
		}
	}
}

func TestGridSession_ClaimTile(t *testing.T) {
	renderer := &mockRenderer{}
	s := newSession(t, renderer)
	ctx := context.Background()
	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})

	tile, version, err := s.ClaimTile(ctx, 7, "#FF0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tile.Index != 7 || tile.ClaimedColor != "#FF0000" {
		t.Errorf("unexpected claimed tile %+v", tile)
	}
	if version != 2 || version != s.Version() {
		t.Errorf("expected version 2 matching the session, got %d (session %d)", version, s.Version())
	}

	grid, _ := s.Snapshot()
	if grid.Tiles[7] != tile {
		t.Errorf("returned tile %+v differs from the grid %+v", tile, grid.Tiles[7])
	}
	for i, tile := range grid.Tiles {
		if i == 7 {
			if tile.ClaimedColor != "#FF0000" {
				t.Errorf("expected tile 7 claimed red, got %q", tile.ClaimedColor)
			}
			continue
		}
		if tile.Claimed() {
			t.Errorf("tile %d unexpectedly claimed", i)
		}
	}
	if len(renderer.claims) != 1 || renderer.claims[0].Index != 7 {
		t.Errorf("expected one claim notification for tile 7, got %+v", renderer.claims)
	}
}

func TestGridSession_ClaimTile_OutOfRange(t *testing.T) {
	renderer := &mockRenderer{}
	s := newSession(t, renderer)
	ctx := context.Background()

	// No grid yet.
	if _, _, err := s.ClaimTile(ctx, 0, "#FF0000"); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange before first grid, got %v", err)
	}

	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})
	before, _ := s.Snapshot()

	for _, index := range []int{25, -1, 1000} {
		if _, _, err := s.ClaimTile(ctx, index, "#FF0000"); !errors.Is(err, domain.ErrIndexOutOfRange) {
			t.Errorf("index %d: expected ErrIndexOutOfRange, got %v", index, err)
		}
	}

	after, _ := s.Snapshot()
	if after.Version != before.Version {
		t.Errorf("failed claims changed the version: %d -> %d", before.Version, after.Version)
	}
	if len(renderer.claims) != 0 {
		t.Errorf("expected no claim notifications, got %d", len(renderer.claims))
	}
}

func TestGridSession_ClaimTile_Idempotent(t *testing.T) {
	renderer := &mockRenderer{}
	s := newSession(t, renderer)
	ctx := context.Background()
	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})

	for i := 0; i < 3; i++ {
		if _, _, err := s.ClaimTile(ctx, 4, "#00FF00"); err != nil {
			t.Fatal(err)
		}
	}
	if len(renderer.claims) != 1 {
		t.Errorf("expected one notification for repeated claims, got %d", len(renderer.claims))
	}
	if s.Version() != 2 {
		t.Errorf("expected version 2, got %d", s.Version())
	}
	tile, version, err := s.ClaimTile(ctx, 4, "#00FF00")
	if err != nil || tile.ClaimedColor != "#00FF00" || version != 2 {
		t.Errorf("repeated claim returned %+v version %d err %v", tile, version, err)
	}

	// Recolouring is a new claim.
	tile, version, err = s.ClaimTile(ctx, 4, "#0000FF")
	if err != nil {
		t.Fatal(err)
	}
	if tile.ClaimedColor != "#0000FF" || version != 3 {
		t.Errorf("recolour returned %+v version %d", tile, version)
	}
	if len(renderer.claims) != 2 {
		t.Errorf("expected recolour to notify, got %d notifications", len(renderer.claims))
	}
}

func TestGridSession_SelectedColor(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()
	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})

	if _, _, err := s.ClaimWithSelected(ctx, 0); !errors.Is(err, domain.ErrColorRequired) {
		t.Errorf("expected ErrColorRequired with nothing selected, got %v", err)
	}
	if err := s.SelectColor(""); !errors.Is(err, domain.ErrColorRequired) {
		t.Errorf("expected ErrColorRequired for empty colour, got %v", err)
	}

	if err := s.SelectColor("#ABCDEF"); err != nil {
		t.Fatal(err)
	}
	tile, _, err := s.ClaimWithSelected(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tile.ClaimedColor != "#ABCDEF" {
		t.Errorf("expected the returned tile in the selected colour, got %q", tile.ClaimedColor)
	}
	grid, _ := s.Snapshot()
	if grid.Tiles[0].ClaimedColor != "#ABCDEF" {
		t.Errorf("expected selected colour, got %q", grid.Tiles[0].ClaimedColor)
	}
}

func TestGridSession_TileAt(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()

	if _, ok := s.TileAt(domain.GeoPoint{Lat: 37.788, Lon: -122.432}); ok {
		t.Error("expected no tile before first grid")
	}

	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})
	tile, ok := s.TileAt(domain.GeoPoint{Lat: 37.78801, Lon: -122.43199})
	if !ok || tile.Index != 12 {
		t.Errorf("expected centre tile, got %+v ok=%v", tile, ok)
	}
	if _, ok := s.TileAt(domain.GeoPoint{Lat: 0, Lon: 0}); ok {
		t.Error("expected no tile far away")
	}
}

func TestGridSession_SnapshotIsCopy(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()
	s.RegenerateIfNeeded(ctx, domain.GeoPoint{Lat: 37.788, Lon: -122.432})

	grid, _ := s.Snapshot()
	grid.Tiles[0].ClaimedColor = "mutated"

	again, _ := s.Snapshot()
	if again.Tiles[0].Claimed() {
		t.Error("snapshot shares tiles with the session")
	}
}
