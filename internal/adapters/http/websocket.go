package http

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/Christopher96/places-online/internal/adapters/nats"
	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsMessage is sent from client to subscribe/unsubscribe to channels.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe" | "snapshot"
	Channel string `json:"channel"` // "all" | "grid" | "tile" | "observer" | "camera"
}

// wsReply acknowledges a client message.
type wsReply struct {
	Status  string `json:"status,omitempty"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wsSnapshot is sent on connect and on request, so late joiners can draw
// the current grid before the next event arrives.
type wsSnapshot struct {
	Type     string               `json:"type"`
	Grid     *domain.Grid         `json:"grid,omitempty"`
	Observer domain.ObserverState `json:"observer"`
}

// channelSubjects maps client channels onto event subjects.
var channelSubjects = map[string]string{
	"all":      natsadapter.SubjectAllEvents,
	"grid":     natsadapter.SubjectGridChanged,
	"tile":     natsadapter.SubjectTileClaimed,
	"observer": natsadapter.SubjectObserverChanged,
	"camera":   "places.events.camera.>",
}

func snapshot(deps *Dependencies) wsSnapshot {
	s := wsSnapshot{Type: "snapshot", Observer: deps.Tracker.Observer()}
	if g, ok := deps.Session.Snapshot(); ok {
		s.Grid = &g
	}
	return s
}

// wsClient is one connection and the channels it listens to.
type wsClient struct {
	conn *websocket.Conn
	nc   *nats.Conn
	mu   sync.Mutex // guards writes
	subs map[string]*nats.Subscription
}

func (w *wsClient) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsClient) relay(msg *nats.Msg) {
	_ = w.send(json.RawMessage(msg.Data))
}

func (w *wsClient) subscribe(channel string) wsReply {
	subject, ok := channelSubjects[channel]
	if !ok {
		return wsReply{Error: "unknown channel: " + channel}
	}
	if _, exists := w.subs[channel]; exists {
		return wsReply{Status: "already subscribed", Channel: channel}
	}
	s, err := w.nc.Subscribe(subject, w.relay)
	if err != nil {
		return wsReply{Error: "subscribe failed: " + err.Error()}
	}
	w.subs[channel] = s
	return wsReply{Status: "subscribed", Channel: channel}
}

func (w *wsClient) unsubscribe(channel string) wsReply {
	s, exists := w.subs[channel]
	if !exists {
		return wsReply{Error: "not subscribed to " + channel}
	}
	_ = s.Unsubscribe()
	delete(w.subs, channel)
	return wsReply{Status: "unsubscribed", Channel: channel}
}

func (w *wsClient) close() {
	for _, s := range w.subs {
		_ = s.Unsubscribe()
	}
}

func (w *wsClient) ping(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			err := w.conn.WriteMessage(websocket.PingMessage, nil)
			w.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// WebSocketHandler returns a handler that relays renderer events from NATS
// to connected clients. Every client gets a snapshot, then starts
// subscribed to "all".
// Clients send JSON: {"action":"subscribe","channel":"tile"}.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		log.Printf("ws client connected: %s", remoteAddr)

		client := &wsClient{conn: c, nc: deps.NATS, subs: make(map[string]*nats.Subscription)}
		defer client.close()

		if err := client.send(snapshot(deps)); err != nil {
			return
		}
		if r := client.subscribe("all"); r.Error != "" {
			log.Printf("ws default subscribe error: %s", r.Error)
			return
		}

		done := make(chan struct{})
		defer close(done)
		go client.ping(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = client.send(wsReply{Error: "invalid JSON"})
				continue
			}

			channel := m.Channel
			if channel == "" {
				channel = "all"
			}

			switch m.Action {
			case "subscribe":
				_ = client.send(client.subscribe(channel))
			case "unsubscribe":
				_ = client.send(client.unsubscribe(channel))
			case "snapshot":
				_ = client.send(snapshot(deps))
			default:
				_ = client.send(wsReply{Error: "unknown action: " + m.Action})
			}
		}

		log.Printf("ws client disconnected: %s", remoteAddr)
	}
}
