// Package feed holds the fan-out shared by push-based location sources.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
)

// Hub remembers the last position and fans samples out to subscribers.
// Its RequestFix and Subscribe satisfy ports.LocationProvider.
type Hub struct {
	name       string
	fixTimeout time.Duration

	mu       sync.Mutex
	last     *domain.PositionSample
	fixed    chan struct{}
	handlers map[int]handlers
	nextID   int
}

type handlers struct {
	ctx        context.Context
	onPosition ports.PositionHandler
	onHeading  ports.HeadingHandler
}

// NewHub creates a hub. name shows up in error messages; fixTimeout bounds
// how long RequestFix waits for the first position (zero waits on ctx only).
func NewHub(name string, fixTimeout time.Duration) *Hub {
	return &Hub{
		name:       name,
		fixTimeout: fixTimeout,
		fixed:      make(chan struct{}),
		handlers:   make(map[int]handlers),
	}
}

// Deliver records a position and passes it to every subscriber.
func (h *Hub) Deliver(s domain.PositionSample) {
	h.mu.Lock()
	if h.last == nil {
		close(h.fixed)
	}
	h.last = &s
	subs := h.snapshot()
	h.mu.Unlock()

	for _, sub := range subs {
		sub.onPosition(sub.ctx, s)
	}
}

// DeliverHeading passes a heading to every subscriber.
func (h *Hub) DeliverHeading(s domain.HeadingSample) {
	h.mu.Lock()
	subs := h.snapshot()
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.onHeading != nil {
			sub.onHeading(sub.ctx, s)
		}
	}
}

func (h *Hub) snapshot() []handlers {
	out := make([]handlers, 0, len(h.handlers))
	for _, sub := range h.handlers {
		out = append(out, sub)
	}
	return out
}

// Last returns the most recent position, if any.
func (h *Hub) Last() (domain.PositionSample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return domain.PositionSample{}, false
	}
	return *h.last, true
}

// RequestFix returns the latest position, waiting for the first one.
func (h *Hub) RequestFix(ctx context.Context) (domain.GeoPoint, error) {
	if h.fixTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.fixTimeout)
		defer cancel()
	}

	select {
	case <-h.fixed:
	case <-ctx.Done():
		return domain.GeoPoint{}, fmt.Errorf("%w: no fix from %s: %v", domain.ErrLocationUnavailable, h.name, ctx.Err())
	}

	last, _ := h.Last()
	return last.Point, nil
}

// Subscribe registers handlers for every subsequent sample.
func (h *Hub) Subscribe(ctx context.Context, onPosition ports.PositionHandler, onHeading ports.HeadingHandler) (ports.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.handlers[id] = handlers{ctx: ctx, onPosition: onPosition, onHeading: onHeading}
	return &subscription{hub: h, id: id}, nil
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

type subscription struct {
	hub  *Hub
	id   int
	once sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.handlers, s.id)
		s.hub.mu.Unlock()
	})
	return nil
}
