package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/core/ports"
)

// Source implements ports.LocationProvider on top of the JetStream sample
// stream. Any producer (phone bridge, GPS gateway) can feed it.
type Source struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewSource connects to NATS and makes sure the sample stream exists.
func NewSource(url string) (*Source, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := setupJetStream(conn)
	if err != nil {
		return nil, err
	}
	return &Source{conn: conn, js: js}, nil
}

// RequestFix returns the most recent position in the sample stream.
func (s *Source) RequestFix(ctx context.Context) (domain.GeoPoint, error) {
	msg, err := s.js.GetLastMsg(StreamSamples, SubjectPositionSamples, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrMsgNotFound) {
			return domain.GeoPoint{}, fmt.Errorf("%w: no position published yet", domain.ErrLocationUnavailable)
		}
		return domain.GeoPoint{}, fmt.Errorf("%w: %v", domain.ErrLocationUnavailable, err)
	}
	var sample domain.PositionSample
	if err := json.Unmarshal(msg.Data, &sample); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: decode last position: %v", domain.ErrLocationUnavailable, err)
	}
	return sample.Point, nil
}

// Subscribe delivers new samples published after the call.
func (s *Source) Subscribe(ctx context.Context, onPosition ports.PositionHandler, onHeading ports.HeadingHandler) (ports.Subscription, error) {
	sub := &subscription{}

	pos, err := s.js.Subscribe(SubjectPositionSamples, func(msg *nats.Msg) {
		var sample domain.PositionSample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			slog.Warn("nats position decode", "error", err)
			return
		}
		onPosition(ctx, sample)
	}, nats.DeliverNew(), nats.AckNone())
	if err != nil {
		return nil, fmt.Errorf("subscribe positions: %w", err)
	}
	sub.subs = append(sub.subs, pos)

	head, err := s.js.Subscribe(SubjectHeadingSamples, func(msg *nats.Msg) {
		var sample domain.HeadingSample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			slog.Warn("nats heading decode", "error", err)
			return
		}
		onHeading(ctx, sample)
	}, nats.DeliverNew(), nats.AckNone())
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe headings: %w", err)
	}
	sub.subs = append(sub.subs, head)

	return sub, nil
}

// Close drains the connection.
func (s *Source) Close() {
	_ = s.conn.Drain()
}

type subscription struct {
	subs []*nats.Subscription
}

// Close unsubscribes every underlying subscription.
func (s *subscription) Close() error {
	var errs []error
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
