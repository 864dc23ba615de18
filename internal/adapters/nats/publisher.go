package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/pkg/metrics"
)

// Subjects used between the core and its collaborators.
const (
	SubjectGridChanged     = "places.events.grid"
	SubjectTileClaimed     = "places.events.tile"
	SubjectObserverChanged = "places.events.observer"
	SubjectCameraCenter    = "places.events.camera.center"
	SubjectCameraRotate    = "places.events.camera.rotate"
	SubjectAllEvents       = "places.events.>"

	SubjectPositionSamples = "places.samples.position"
	SubjectHeadingSamples  = "places.samples.heading"

	StreamEvents  = "PLACES_EVENTS"
	StreamSamples = "PLACES_SAMPLES"
)

// Event is the envelope every renderer event travels in.
type Event struct {
	Session string          `json:"session"`
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data"`
}

// TileClaim is the payload of a tile event.
type TileClaim struct {
	Tile    domain.Tile `json:"tile"`
	Version uint64      `json:"version"`
}

// CameraMove is the payload of camera events.
type CameraMove struct {
	Center     *domain.GeoPoint `json:"center,omitempty"`
	Heading    *float64         `json:"heading,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// Publisher implements ports.Renderer by publishing events to NATS JetStream.
type Publisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	session string
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := setupJetStream(conn)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js, session: uuid.NewString()}, nil
}

// jsConn is the part of *nats.Conn needed to bring up JetStream.
type jsConn interface {
	JetStream(opts ...nats.JSOpt) (nats.JetStreamContext, error)
	Close()
}

// setupJetStream enables JetStream and declares the streams. conn is
// closed when either step fails.
func setupJetStream(conn jsConn) (nats.JetStreamContext, error) {
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return js, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      StreamEvents,
			Subjects:  []string{SubjectAllEvents},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			// Late joiners only need the latest event per subject.
			MaxMsgsPerSubject: 1,
			Storage:           nats.MemoryStorage,
		},
		{
			Name:      StreamSamples,
			Subjects:  []string{"places.samples.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// Session identifies this process in published events.
func (p *Publisher) Session() string {
	return p.session
}

func (p *Publisher) GridChanged(ctx context.Context, grid domain.Grid) error {
	return p.publish(SubjectGridChanged, "grid", grid)
}

func (p *Publisher) TileClaimed(ctx context.Context, tile domain.Tile, version uint64) error {
	return p.publish(SubjectTileClaimed, "tile", TileClaim{Tile: tile, Version: version})
}

func (p *Publisher) ObserverChanged(ctx context.Context, obs domain.ObserverState) error {
	return p.publish(SubjectObserverChanged, "observer", obs)
}

func (p *Publisher) CenterCamera(ctx context.Context, center domain.GeoPoint, d time.Duration) error {
	return p.publish(SubjectCameraCenter, "camera", CameraMove{Center: &center, DurationMS: d.Milliseconds()})
}

func (p *Publisher) RotateCamera(ctx context.Context, heading float64, d time.Duration) error {
	return p.publish(SubjectCameraRotate, "camera", CameraMove{Heading: &heading, DurationMS: d.Milliseconds()})
}

// PublishPosition feeds a position sample into the sample stream.
func (p *Publisher) PublishPosition(ctx context.Context, s domain.PositionSample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPositionSamples, data, nats.Context(ctx))
	return err
}

// PublishHeading feeds a heading sample into the sample stream.
func (p *Publisher) PublishHeading(ctx context.Context, s domain.HeadingSample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectHeadingSamples, data, nats.Context(ctx))
	return err
}

func (p *Publisher) publish(subject, typ string, payload any) error {
	data, err := encodeEvent(p.session, typ, payload)
	if err != nil {
		return err
	}
	// Async publish keeps the sample path from waiting on broker acks.
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	return nil
}

func encodeEvent(session, typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return json.Marshal(Event{Session: session, Type: typ, Time: time.Now().UTC(), Data: raw})
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
