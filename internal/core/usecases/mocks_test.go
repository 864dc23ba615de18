package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
)

// --- Mock Renderer ---

type cameraMove struct {
	center   *domain.GeoPoint
	heading  *float64
	duration time.Duration
}

type mockRenderer struct {
	mu        sync.Mutex
	grids     []domain.Grid
	claims    []domain.Tile
	observers []domain.ObserverState
	camera    []cameraMove

	gridChangedFn func(ctx context.Context, grid domain.Grid) error
}

func (m *mockRenderer) GridChanged(ctx context.Context, grid domain.Grid) error {
	m.mu.Lock()
	m.grids = append(m.grids, grid)
	m.mu.Unlock()
	if m.gridChangedFn != nil {
		return m.gridChangedFn(ctx, grid)
	}
	return nil
}

func (m *mockRenderer) TileClaimed(ctx context.Context, tile domain.Tile, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = append(m.claims, tile)
	return nil
}

func (m *mockRenderer) ObserverChanged(ctx context.Context, obs domain.ObserverState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
	return nil
}

func (m *mockRenderer) CenterCamera(ctx context.Context, center domain.GeoPoint, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = append(m.camera, cameraMove{center: &center, duration: d})
	return nil
}

func (m *mockRenderer) RotateCamera(ctx context.Context, heading float64, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = append(m.camera, cameraMove{heading: &heading, duration: d})
	return nil
}

func (m *mockRenderer) lastObserver() domain.ObserverState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.observers) == 0 {
		return domain.ObserverState{}
	}
	return m.observers[len(m.observers)-1]
}

func (m *mockRenderer) lastCamera() (cameraMove, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.camera) == 0 {
		return cameraMove{}, false
	}
	return m.camera[len(m.camera)-1], true
}

// --- Mock LocationProvider ---

type mockLocation struct {
	requestFixFn func(ctx context.Context) (domain.GeoPoint, error)
	subscribeFn  func(ctx context.Context) error

	onPosition ports.PositionHandler
	onHeading  ports.HeadingHandler
	closed     bool
}

func (m *mockLocation) RequestFix(ctx context.Context) (domain.GeoPoint, error) {
	if m.requestFixFn != nil {
		return m.requestFixFn(ctx)
	}
	return domain.GeoPoint{Lat: 37.78825, Lon: -122.4324}, nil
}

func (m *mockLocation) Subscribe(ctx context.Context, onPosition ports.PositionHandler, onHeading ports.HeadingHandler) (ports.Subscription, error) {
	if m.subscribeFn != nil {
		if err := m.subscribeFn(ctx); err != nil {
			return nil, err
		}
	}
	m.onPosition = onPosition
	m.onHeading = onHeading
	return m, nil
}

func (m *mockLocation) Close() error {
	m.closed = true
	return nil
}

func (m *mockLocation) position(lat, lon float64) {
	m.onPosition(context.Background(), domain.PositionSample{Point: domain.GeoPoint{Lat: lat, Lon: lon}})
}

func (m *mockLocation) heading(deg float64) {
	m.onHeading(context.Background(), domain.HeadingSample{Degrees: deg})
}

// --- Mock SampleJournal ---

type mockJournal struct {
	mu        sync.Mutex
	positions []domain.PositionSample
	headings  []domain.HeadingSample
}

func (m *mockJournal) RecordPosition(ctx context.Context, s domain.PositionSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, s)
	return nil
}

func (m *mockJournal) RecordHeading(ctx context.Context, s domain.HeadingSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headings = append(m.headings, s)
	return nil
}

func (m *mockJournal) LatestPosition(ctx context.Context) (*domain.PositionSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.positions) == 0 {
		return nil, nil
	}
	p := m.positions[len(m.positions)-1]
	return &p, nil
}

func (m *mockJournal) Since(ctx context.Context, from time.Time, limit int) ([]ports.JournalEntry, error) {
	return nil, nil
}
