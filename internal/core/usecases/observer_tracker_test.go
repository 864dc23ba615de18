package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/usecases"
)

type trackerFixture struct {
	tracker  *usecases.ObserverTracker
	session  *usecases.GridSession
	location *mockLocation
	renderer *mockRenderer
	journal  *mockJournal
}

func newTracker(t *testing.T, location *mockLocation) *trackerFixture {
	t.Helper()
	if location == nil {
		location = &mockLocation{}
	}
	renderer := &mockRenderer{}
	journal := &mockJournal{}
	session := newSession(t, renderer)
	tracker := usecases.NewObserverTracker(usecases.DefaultTrackerConfig(), session, location, renderer, journal)
	return &trackerFixture{tracker: tracker, session: session, location: location, renderer: renderer, journal: journal}
}

func started(t *testing.T) *trackerFixture {
	t.Helper()
	f := newTracker(t, nil)
	if err := f.tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return f
}

func TestObserverTracker_InitialState(t *testing.T) {
	f := newTracker(t, nil)

	if f.tracker.State() != domain.Uninitialized {
		t.Errorf("expected Uninitialized, got %s", f.tracker.State())
	}
	obs := f.tracker.Observer()
	if obs.Status != domain.StatusLoading {
		t.Errorf("expected status %q, got %q", domain.StatusLoading, obs.Status)
	}
	want := domain.GeoPoint{Lat: 37.7883, Lon: -122.4324}
	if !obs.RawPosition.Equal(want) {
		t.Errorf("expected default region %+v, got %+v", want, obs.RawPosition)
	}
	if _, ok := f.session.Snapshot(); ok {
		t.Error("expected no grid before the first fix")
	}
}

func TestObserverTracker_StartSuccess(t *testing.T) {
	f := started(t)

	if f.tracker.State() != domain.Tracking {
		t.Fatalf("expected Tracking, got %s", f.tracker.State())
	}
	obs := f.tracker.Observer()
	if obs.Status != domain.StatusReady {
		t.Errorf("expected status %q, got %q", domain.StatusReady, obs.Status)
	}

	grid, ok := f.session.Snapshot()
	if !ok {
		t.Fatal("expected a grid after the first fix")
	}
	if !grid.Origin.Equal(domain.GeoPoint{Lat: 37.788, Lon: -122.432}) {
		t.Errorf("unexpected origin %+v", grid.Origin)
	}

	// Locating, Rendering, then Ready.
	statuses := make([]string, 0, len(f.renderer.observers))
	for _, o := range f.renderer.observers {
		statuses = append(statuses, o.Status)
	}
	want := []string{domain.StatusLocating, domain.StatusRendering, domain.StatusReady}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("status %d: expected %q, got %q", i, want[i], statuses[i])
		}
	}

	move, ok := f.renderer.lastCamera()
	if !ok || move.center == nil || move.duration != 500*time.Millisecond {
		t.Errorf("expected camera centred with 500ms animation, got %+v", move)
	}
	if len(f.journal.positions) != 1 {
		t.Errorf("expected first fix journaled, got %d", len(f.journal.positions))
	}
}

func TestObserverTracker_StartIsIdempotent(t *testing.T) {
	f := started(t)
	calls := len(f.renderer.observers)
	if err := f.tracker.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.renderer.observers) != calls {
		t.Error("second Start produced notifications")
	}
}

func TestObserverTracker_PermissionDenied(t *testing.T) {
	f := newTracker(t, &mockLocation{
		requestFixFn: func(ctx context.Context) (domain.GeoPoint, error) {
			return domain.GeoPoint{}, domain.ErrPermissionDenied
		},
	})

	err := f.tracker.Start(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if f.tracker.State() != domain.Locating {
		t.Errorf("expected Locating, got %s", f.tracker.State())
	}
	if _, ok := f.session.Snapshot(); ok {
		t.Error("expected no grid without a fix")
	}
	if got := f.renderer.lastObserver().Status; got != domain.StatusNoLocation {
		t.Errorf("expected status %q, got %q", domain.StatusNoLocation, got)
	}
}

func TestObserverTracker_UnavailableIsWrapped(t *testing.T) {
	f := newTracker(t, &mockLocation{
		requestFixFn: func(ctx context.Context) (domain.GeoPoint, error) {
			return domain.GeoPoint{}, errors.New("gps timeout")
		},
	})

	err := f.tracker.Start(context.Background())
	if !errors.Is(err, domain.ErrLocationUnavailable) {
		t.Fatalf("expected ErrLocationUnavailable, got %v", err)
	}
}

func TestObserverTracker_SubscribeFailure(t *testing.T) {
	f := newTracker(t, &mockLocation{
		subscribeFn: func(ctx context.Context) error { return domain.ErrPermissionDenied },
	})
	err := f.tracker.Start(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if f.tracker.State() != domain.Locating {
		t.Errorf("expected Locating, got %s", f.tracker.State())
	}
}

// failingOnce returns a location whose first Subscribe call is denied.
func failingOnce() *mockLocation {
	attempts := 0
	return &mockLocation{
		subscribeFn: func(ctx context.Context) error {
			attempts++
			if attempts == 1 {
				return domain.ErrPermissionDenied
			}
			return nil
		},
	}
}

func TestObserverTracker_FindMeResubscribes(t *testing.T) {
	f := newTracker(t, failingOnce())
	ctx := context.Background()

	if err := f.tracker.Start(ctx); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := f.tracker.FindMe(ctx); err != nil {
		t.Fatalf("FindMe: %v", err)
	}
	if f.tracker.State() != domain.Tracking {
		t.Fatalf("expected Tracking, got %s", f.tracker.State())
	}
	if f.location.onPosition == nil {
		t.Fatal("expected FindMe to attach the sample stream")
	}

	version := f.session.Version()
	f.location.position(37.78960, -122.43210)
	if f.session.Version() != version+1 {
		t.Errorf("expected a streamed sample to regenerate the grid, version %d -> %d", version, f.session.Version())
	}

	if err := f.tracker.Start(ctx); err != nil {
		t.Fatalf("Start while tracking: %v", err)
	}
}

func TestObserverTracker_StartResubscribes(t *testing.T) {
	f := newTracker(t, failingOnce())
	ctx := context.Background()

	if err := f.tracker.Start(ctx); err == nil {
		t.Fatal("expected the first Start to fail")
	}
	if err := f.tracker.Start(ctx); err != nil {
		t.Fatalf("expected Start to retry the subscription, got %v", err)
	}
	if f.tracker.State() != domain.Tracking {
		t.Fatalf("expected Tracking, got %s", f.tracker.State())
	}

	version := f.session.Version()
	f.location.position(37.78960, -122.43210)
	if f.session.Version() != version+1 {
		t.Errorf("expected a streamed sample to regenerate the grid, version %d -> %d", version, f.session.Version())
	}

	if err := f.tracker.Stop(); err != nil {
		t.Fatal(err)
	}
	if !f.location.closed {
		t.Error("expected the retried subscription to be closed on Stop")
	}
}

func TestObserverTracker_StreamSampleWhileLocating(t *testing.T) {
	f := newTracker(t, &mockLocation{
		requestFixFn: func(ctx context.Context) (domain.GeoPoint, error) {
			return domain.GeoPoint{}, domain.ErrLocationUnavailable
		},
	})
	_ = f.tracker.Start(context.Background())

	f.location.position(37.78825, -122.4324)

	if f.tracker.State() != domain.Tracking {
		t.Fatalf("expected streamed sample to complete locating, got %s", f.tracker.State())
	}
	if _, ok := f.session.Snapshot(); !ok {
		t.Error("expected a grid")
	}
}

func TestObserverTracker_PositionRegeneratesOnNewBase(t *testing.T) {
	f := started(t)

	f.location.position(37.78830, -122.43210) // same base tile
	if v := f.session.Version(); v != 1 {
		t.Errorf("expected version 1 within the same base tile, got %d", v)
	}

	f.location.position(37.78960, -122.43210) // base 37.790
	grid, _ := f.session.Snapshot()
	if grid.Version != 2 || !grid.Origin.Equal(domain.GeoPoint{Lat: 37.790, Lon: -122.432}) {
		t.Errorf("expected regeneration at new base, got version %d origin %+v", grid.Version, grid.Origin)
	}

	obs := f.tracker.Observer()
	if !obs.RawPosition.Equal(domain.GeoPoint{Lat: 37.7896, Lon: -122.4321}) {
		t.Errorf("unexpected raw position %+v", obs.RawPosition)
	}
	if len(f.journal.positions) != 3 {
		t.Errorf("expected 3 journaled positions, got %d", len(f.journal.positions))
	}
}

func TestObserverTracker_HeadingThreshold(t *testing.T) {
	f := started(t)

	f.location.heading(10)
	if h := f.tracker.Observer().Heading; h != 10 {
		t.Fatalf("expected heading 10, got %v", h)
	}

	f.location.heading(12)
	if h := f.tracker.Observer().Heading; h != 10 {
		t.Errorf("expected 12 to be ignored, heading %v", h)
	}

	f.location.heading(14)
	if h := f.tracker.Observer().Heading; h != 14 {
		t.Errorf("expected 14 to be applied, heading %v", h)
	}

	f.location.heading(17)
	if h := f.tracker.Observer().Heading; h != 14 {
		t.Errorf("expected a change of exactly the threshold to be ignored, heading %v", h)
	}

	if len(f.journal.headings) != 2 {
		t.Errorf("expected 2 journaled headings, got %d", len(f.journal.headings))
	}
}

func TestObserverTracker_HeadingWraparound(t *testing.T) {
	f := started(t)

	f.location.heading(358) // 2 degrees from 0
	if h := f.tracker.Observer().Heading; h != 0 {
		t.Errorf("expected 358 to be ignored near 0, heading %v", h)
	}

	f.location.heading(350)
	f.location.heading(2) // 12 degrees across north
	if h := f.tracker.Observer().Heading; h != 2 {
		t.Errorf("expected heading 2, got %v", h)
	}

	f.location.heading(359.6) // rounds to 360, stored as 0
	if h := f.tracker.Observer().Heading; h != 2 {
		t.Errorf("expected 359.6 to be within threshold of 2, heading %v", h)
	}

	f.location.heading(-90)
	if h := f.tracker.Observer().Heading; h != 270 {
		t.Errorf("expected heading normalised to 270, got %v", h)
	}

	f.location.heading(math.NaN())
	if h := f.tracker.Observer().Heading; h != 270 {
		t.Errorf("expected NaN ignored, heading %v", h)
	}
}

func TestObserverTracker_FollowMode(t *testing.T) {
	f := started(t)
	ctx := context.Background()

	// Not following: heading does not rotate the camera.
	before := len(f.renderer.camera)
	f.location.heading(90)
	if len(f.renderer.camera) != before {
		t.Error("camera moved while not following")
	}

	if !f.tracker.ToggleFollow(ctx) {
		t.Fatal("expected follow on")
	}
	move, _ := f.renderer.lastCamera()
	if move.center == nil || move.duration != 0 {
		t.Errorf("expected immediate recentre when follow turns on, got %+v", move)
	}

	f.location.heading(180)
	move, _ = f.renderer.lastCamera()
	if move.heading == nil || *move.heading != 180 || move.duration != 100*time.Millisecond {
		t.Errorf("expected 100ms rotation to 180, got %+v", move)
	}

	f.location.position(37.78830, -122.43210)
	move, _ = f.renderer.lastCamera()
	if move.center == nil || !move.center.Equal(domain.GeoPoint{Lat: 37.7883, Lon: -122.4321}) {
		t.Errorf("expected camera to follow the observer, got %+v", move)
	}

	f.tracker.SetFollow(ctx, false)
	if f.tracker.Observer().FollowMode {
		t.Error("expected follow off")
	}
}

func TestObserverTracker_FindMe(t *testing.T) {
	f := newTracker(t, nil)
	ctx := context.Background()

	if _, err := f.tracker.FindMe(ctx); !errors.Is(err, domain.ErrLocationUnavailable) {
		t.Fatalf("expected ErrLocationUnavailable before Start, got %v", err)
	}

	if err := f.tracker.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.tracker.SetFollow(ctx, true)

	p, err := f.tracker.FindMe(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Equal(domain.GeoPoint{Lat: 37.7883, Lon: -122.4324}) {
		t.Errorf("unexpected point %+v", p)
	}
	if f.tracker.Observer().FollowMode {
		t.Error("expected FindMe to leave follow mode")
	}
	move, _ := f.renderer.lastCamera()
	if move.center == nil || move.duration != 500*time.Millisecond {
		t.Errorf("expected 500ms recentre, got %+v", move)
	}
}

func TestObserverTracker_FindMeRetriesAfterDenial(t *testing.T) {
	denied := true
	location := &mockLocation{
		requestFixFn: func(ctx context.Context) (domain.GeoPoint, error) {
			if denied {
				return domain.GeoPoint{}, domain.ErrPermissionDenied
			}
			return domain.GeoPoint{Lat: 37.78825, Lon: -122.4324}, nil
		},
	}
	f := newTracker(t, location)
	ctx := context.Background()

	if err := f.tracker.Start(ctx); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
	if _, err := f.tracker.FindMe(ctx); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected denial on retry, got %v", err)
	}
	if f.tracker.State() != domain.Locating {
		t.Fatalf("expected Locating, got %s", f.tracker.State())
	}

	denied = false
	if _, err := f.tracker.FindMe(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.tracker.State() != domain.Tracking {
		t.Errorf("expected Tracking after successful retry, got %s", f.tracker.State())
	}
}

func TestObserverTracker_Stop(t *testing.T) {
	f := started(t)
	if err := f.tracker.Stop(); err != nil {
		t.Fatal(err)
	}
	if !f.location.closed {
		t.Error("expected subscription closed")
	}
	if f.tracker.State() != domain.Uninitialized {
		t.Errorf("expected Uninitialized, got %s", f.tracker.State())
	}

	version := f.session.Version()
	f.location.position(40, 40)
	if f.session.Version() != version {
		t.Error("samples after Stop must be ignored")
	}
}

func TestObserverTracker_EndToEnd(t *testing.T) {
	f := started(t)

	grid, ok := f.session.Snapshot()
	if !ok {
		t.Fatal("expected grid")
	}
	if !grid.Origin.Equal(domain.GeoPoint{Lat: 37.788, Lon: -122.432}) {
		t.Fatalf("unexpected origin %+v", grid.Origin)
	}
	if len(grid.Tiles) != 25 {
		t.Fatalf("expected 25 tiles, got %d", len(grid.Tiles))
	}

	tiler := f.session.Tiler()
	for _, tile := range grid.Tiles {
		if tile.Corners != tiler.CornersOf(tile.Center) {
			t.Errorf("tile %d corners inconsistent with centre", tile.Index)
		}
	}
	centre := grid.Tiles[tiler.CenterIndex()]
	if !centre.Center.Equal(grid.Origin) {
		t.Errorf("centre tile %+v is not the origin", centre.Center)
	}

	if _, _, err := f.session.ClaimTile(context.Background(), 7, "#FF0000"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.session.ClaimTile(context.Background(), 25, "#FF0000"); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}
