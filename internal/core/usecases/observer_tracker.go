package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
	"github.com/Christopher96/places-online/internal/pkg/geospatial"
	"github.com/Christopher96/places-online/internal/pkg/metrics"
)

// TrackerConfig holds the tunables of the observer tracker.
type TrackerConfig struct {
	HeadingThreshold float64       // degrees a compass reading must move before it is applied
	FollowDuration   time.Duration // camera recentering while following
	LocateDuration   time.Duration // camera animation for the first fix and "find me"
	HeadingDuration  time.Duration // camera rotation while following
}

// DefaultTrackerConfig mirrors the mobile client.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		HeadingThreshold: 3,
		FollowDuration:   0,
		LocateDuration:   500 * time.Millisecond,
		HeadingDuration:  100 * time.Millisecond,
	}
}

// ObserverTracker turns location and heading samples into observer state
// and grid regenerations. All entry points share one lock, so every sample
// is processed to completion before the next one starts.
type ObserverTracker struct {
	mu       sync.Mutex
	cfg      TrackerConfig
	session  *GridSession
	location ports.LocationProvider
	renderer ports.Renderer
	journal  ports.SampleJournal

	state domain.TrackerState
	obs   domain.ObserverState
	sub   ports.Subscription
	now   func() time.Time
}

// NewObserverTracker wires a tracker. renderer and journal may be nil.
func NewObserverTracker(
	cfg TrackerConfig,
	session *GridSession,
	location ports.LocationProvider,
	renderer ports.Renderer,
	journal ports.SampleJournal,
) *ObserverTracker {
	spec := session.Tiler().Spec()
	return &ObserverTracker{
		cfg:      cfg,
		session:  session,
		location: location,
		renderer: renderer,
		journal:  journal,
		state:    domain.Uninitialized,
		obs: domain.ObserverState{
			RawPosition: geospatial.QuantizePoint(domain.DefaultRegion, spec.TileDecimals),
			State:       domain.Uninitialized,
			Status:      domain.StatusLoading,
		},
		now: time.Now,
	}
}

// Start subscribes to the sample stream and asks for a first fix. When no
// fix can be had the tracker stays Locating and the cause is returned;
// there is no automatic retry, see FindMe. Calling Start again while
// Locating without a subscription retries the subscription.
func (t *ObserverTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state == domain.Tracking || (t.state == domain.Locating && t.sub != nil) {
		t.mu.Unlock()
		return nil
	}
	t.setState(domain.Locating, domain.StatusLocating)
	obs := t.obs
	t.mu.Unlock()
	t.notifyObserver(ctx, obs)

	if err := t.subscribe(ctx); err != nil {
		return t.locationFailed(ctx, err)
	}

	fix, err := t.location.RequestFix(ctx)
	if err != nil {
		return t.locationFailed(ctx, err)
	}
	t.HandlePosition(ctx, domain.PositionSample{Point: fix, Time: t.now()})
	return nil
}

// subscribe attaches the tracker to the sample stream unless it already
// is. The stream outlives ctx; it ends with Stop.
func (t *ObserverTracker) subscribe(ctx context.Context) error {
	t.mu.Lock()
	attached := t.sub != nil
	t.mu.Unlock()
	if attached {
		return nil
	}

	sub, err := t.location.Subscribe(context.WithoutCancel(ctx), t.HandlePosition, t.HandleHeading)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	t.mu.Lock()
	if t.sub != nil || t.state == domain.Uninitialized {
		t.mu.Unlock()
		return sub.Close()
	}
	t.sub = sub
	t.mu.Unlock()
	return nil
}

// Stop tears down the sample subscription.
func (t *ObserverTracker) Stop() error {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.setState(domain.Uninitialized, domain.StatusLoading)
	t.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

// HandlePosition consumes one position sample. While Locating the sample
// is the first fix; while Tracking it may shift the grid origin.
func (t *ObserverTracker) HandlePosition(ctx context.Context, s domain.PositionSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == domain.Uninitialized {
		return
	}
	metrics.SamplesProcessed.WithLabelValues("position").Inc()

	spec := t.session.Tiler().Spec()
	first := t.state == domain.Locating

	t.obs.RawPosition = geospatial.QuantizePoint(s.Point, spec.TileDecimals)
	t.obs.UpdatedAt = t.stamp(s.Time)
	if first {
		t.obs.Status = domain.StatusRendering
		t.notifyObserver(ctx, t.obs)
	}

	// The base tile comes from the raw fix; quantizing twice could round differently.
	t.session.RegenerateIfNeeded(ctx, t.session.Tiler().BaseTile(s.Point))

	if first {
		t.setState(domain.Tracking, domain.StatusReady)
		slog.InfoContext(ctx, "observer located",
			"lat", t.obs.RawPosition.Lat, "lon", t.obs.RawPosition.Lon)
	}

	if t.journal != nil {
		if err := t.journal.RecordPosition(ctx, s); err != nil {
			slog.WarnContext(ctx, "journal position failed", "error", err)
		}
	}

	t.notifyObserver(ctx, t.obs)
	switch {
	case first:
		t.moveCamera(ctx, t.obs.RawPosition, t.cfg.LocateDuration)
	case t.obs.FollowMode:
		t.moveCamera(ctx, t.obs.RawPosition, t.cfg.FollowDuration)
	}
}

// HandleHeading consumes one compass sample. Readings within
// HeadingThreshold of the stored heading are dropped to keep the marker
// from jittering.
func (t *ObserverTracker) HandleHeading(ctx context.Context, s domain.HeadingSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == domain.Uninitialized {
		return
	}
	metrics.SamplesProcessed.WithLabelValues("heading").Inc()

	if math.IsNaN(s.Degrees) || geospatial.AngularDistance(t.obs.Heading, s.Degrees) <= t.cfg.HeadingThreshold {
		metrics.HeadingUpdates.WithLabelValues("suppressed").Inc()
		return
	}
	metrics.HeadingUpdates.WithLabelValues("applied").Inc()

	t.obs.Heading = geospatial.NormalizeHeading(math.Round(s.Degrees))
	t.obs.UpdatedAt = t.stamp(s.Time)

	if t.journal != nil {
		if err := t.journal.RecordHeading(ctx, s); err != nil {
			slog.WarnContext(ctx, "journal heading failed", "error", err)
		}
	}

	t.notifyObserver(ctx, t.obs)
	if t.obs.FollowMode && t.renderer != nil {
		if err := t.renderer.RotateCamera(ctx, t.obs.Heading, t.cfg.HeadingDuration); err != nil {
			slog.WarnContext(ctx, "renderer camera rotation failed", "error", err)
		}
	}
}

// SetFollow switches follow mode. It never moves the observer; when turned
// on the camera is recentred on the current position.
func (t *ObserverTracker) SetFollow(ctx context.Context, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.obs.FollowMode == on {
		return
	}
	t.obs.FollowMode = on
	t.notifyObserver(ctx, t.obs)
	if on && t.state == domain.Tracking {
		t.moveCamera(ctx, t.obs.RawPosition, t.cfg.FollowDuration)
	}
}

// ToggleFollow flips follow mode and returns the new value.
func (t *ObserverTracker) ToggleFollow(ctx context.Context) bool {
	t.mu.Lock()
	on := !t.obs.FollowMode
	t.mu.Unlock()
	t.SetFollow(ctx, on)
	return on
}

// FindMe is the user-initiated retry: it leaves follow mode, requests a
// fresh fix and points the camera at it. A tracker still Locating becomes
// Tracking on success. A sample stream that failed to attach is retried
// first.
func (t *ObserverTracker) FindMe(ctx context.Context) (domain.GeoPoint, error) {
	t.SetFollow(ctx, false)

	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state == domain.Uninitialized {
		return domain.GeoPoint{}, fmt.Errorf("%w: tracker not started", domain.ErrLocationUnavailable)
	}
	if err := t.subscribe(ctx); err != nil {
		return domain.GeoPoint{}, t.locationFailed(ctx, err)
	}

	fix, err := t.location.RequestFix(ctx)
	if err != nil {
		return domain.GeoPoint{}, t.locationFailed(ctx, err)
	}

	if state == domain.Locating {
		t.HandlePosition(ctx, domain.PositionSample{Point: fix, Time: t.now()})
	}

	t.mu.Lock()
	spec := t.session.Tiler().Spec()
	point := geospatial.QuantizePoint(fix, spec.TileDecimals)
	t.moveCamera(ctx, point, t.cfg.LocateDuration)
	t.mu.Unlock()
	return point, nil
}

// State returns the tracker lifecycle state.
func (t *ObserverTracker) State() domain.TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observer returns a copy of the observer state.
func (t *ObserverTracker) Observer() domain.ObserverState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.obs
}

// locationFailed records a failed fix request and normalises the error to
// one of the location sentinels.
func (t *ObserverTracker) locationFailed(ctx context.Context, err error) error {
	reason := "unavailable"
	if errors.Is(err, domain.ErrPermissionDenied) {
		reason = "permission_denied"
	} else if !errors.Is(err, domain.ErrLocationUnavailable) {
		err = fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	metrics.LocationFailures.WithLabelValues(reason).Inc()

	t.mu.Lock()
	if t.state == domain.Locating {
		t.obs.Status = domain.StatusNoLocation
	}
	obs := t.obs
	t.mu.Unlock()

	slog.WarnContext(ctx, "location request failed", "reason", reason, "error", err)
	t.notifyObserver(ctx, obs)
	return err
}

func (t *ObserverTracker) setState(s domain.TrackerState, status string) {
	t.state = s
	t.obs.State = s
	t.obs.Status = status
}

func (t *ObserverTracker) stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return t.now()
	}
	return ts
}

func (t *ObserverTracker) notifyObserver(ctx context.Context, obs domain.ObserverState) {
	if t.renderer == nil {
		return
	}
	if err := t.renderer.ObserverChanged(ctx, obs); err != nil {
		slog.WarnContext(ctx, "renderer observer update failed", "error", err)
	}
}

func (t *ObserverTracker) moveCamera(ctx context.Context, p domain.GeoPoint, d time.Duration) {
	if t.renderer == nil {
		return
	}
	if err := t.renderer.CenterCamera(ctx, p, d); err != nil {
		slog.WarnContext(ctx, "renderer camera move failed", "error", err)
	}
}
