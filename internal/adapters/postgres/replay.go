package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
)

// ReplaySource implements ports.LocationProvider by replaying a recorded walk
// from a journal. Gaps between samples are reproduced, divided by Speed.
type ReplaySource struct {
	journal ports.SampleJournal
	since   time.Duration
	speed   float64
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) bool
}

// NewReplaySource replays samples recorded within the last since. A speed of
// zero or less replays without waiting.
func NewReplaySource(journal ports.SampleJournal, since time.Duration, speed float64) *ReplaySource {
	return &ReplaySource{
		journal: journal,
		since:   since,
		speed:   speed,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// RequestFix returns the last recorded position.
func (r *ReplaySource) RequestFix(ctx context.Context) (domain.GeoPoint, error) {
	s, err := r.journal.LatestPosition(ctx)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	if s == nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: journal is empty", domain.ErrLocationUnavailable)
	}
	return s.Point, nil
}

// Subscribe loads the window and replays it in the background.
func (r *ReplaySource) Subscribe(ctx context.Context, onPosition ports.PositionHandler, onHeading ports.HeadingHandler) (ports.Subscription, error) {
	entries, err := r.journal.Since(ctx, r.now().Add(-r.since), 0)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	replayCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &replaySubscription{cancel: cancel}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		r.replay(replayCtx, entries, onPosition, onHeading)
	}()
	return sub, nil
}

func (r *ReplaySource) replay(ctx context.Context, entries []ports.JournalEntry, onPosition ports.PositionHandler, onHeading ports.HeadingHandler) {
	slog.Info("journal replay started", "samples", len(entries))
	var prev time.Time
	for _, e := range entries {
		t := e.Time()
		if !prev.IsZero() && r.speed > 0 {
			gap := time.Duration(float64(t.Sub(prev)) / r.speed)
			if gap > 0 && !r.sleep(ctx, gap) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		prev = t
		switch {
		case e.Position != nil:
			onPosition(ctx, *e.Position)
		case e.Heading != nil:
			onHeading(ctx, *e.Heading)
		}
	}
	slog.Info("journal replay finished", "samples", len(entries))
}

type replaySubscription struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Close stops the replay and waits for it to exit.
func (s *replaySubscription) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
