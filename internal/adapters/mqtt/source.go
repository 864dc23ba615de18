package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Christopher96/places-online/internal/adapters/feed"
)

// Options configures the MQTT location source.
type Options struct {
	Broker        string
	ClientID      string
	PositionTopic string
	HeadingTopic  string
	// FixTimeout bounds how long RequestFix waits for a first position.
	FixTimeout time.Duration
}

// Source implements ports.LocationProvider over MQTT. Positions are
// subscribed at connect time so retained fixes are picked up immediately.
type Source struct {
	*feed.Hub
	client paho.Client
	opts   Options
}

// New creates a source that is not yet connected.
func New(opts Options) *Source {
	return &Source{
		Hub:  feed.NewHub("mqtt "+opts.PositionTopic, opts.FixTimeout),
		opts: opts,
	}
}

// Connect dials the broker and subscribes to the configured topics.
func (s *Source) Connect() error {
	clientOpts := paho.NewClientOptions().
		AddBroker(s.opts.Broker).
		SetClientID(s.opts.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c paho.Client) {
			// Subscriptions are lost on reconnect with a clean session.
			if err := s.subscribe(c); err != nil {
				log.Printf("mqtt subscribe: %v", err)
			}
		})

	s.client = paho.NewClient(clientOpts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.opts.Broker, token.Error())
	}
	log.Printf("mqtt location source connected to %s", s.opts.Broker)
	return nil
}

func (s *Source) subscribe(c paho.Client) error {
	if token := c.Subscribe(s.opts.PositionTopic, 0, s.onPosition); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.opts.PositionTopic, token.Error())
	}
	if s.opts.HeadingTopic == "" {
		return nil
	}
	if token := c.Subscribe(s.opts.HeadingTopic, 0, s.onHeading); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.opts.HeadingTopic, token.Error())
	}
	return nil
}

func (s *Source) onPosition(_ paho.Client, msg paho.Message) {
	sample, err := DecodePosition(msg.Payload(), time.Now().UTC())
	if err != nil {
		log.Printf("mqtt %s: %v", msg.Topic(), err)
		return
	}
	s.Deliver(sample)
}

func (s *Source) onHeading(_ paho.Client, msg paho.Message) {
	sample, err := DecodeHeading(msg.Payload(), time.Now().UTC())
	if err != nil {
		log.Printf("mqtt %s: %v", msg.Topic(), err)
		return
	}
	s.DeliverHeading(sample)
}

// Close disconnects from the broker.
func (s *Source) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}
