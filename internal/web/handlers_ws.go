package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"matter-sensor-node/internal/events"

	"nhooyr.io/websocket"
)

// snapshotEvent is the type of the first message on every connection.
const snapshotEvent = "snapshot"

const (
	wsSendBuffer   = 64
	wsReadLimit    = 4096
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHub fans node events out to WebSocket subscribers.
type WSHub struct {
	mu          sync.RWMutex
	subscribers map[*wsClient]struct{}
	logger      *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	events     chan events.Event

	done     chan struct{}
	stopOnce sync.Once
}

// wsClient is one subscriber. A nil types set receives every event.
type wsClient struct {
	conn  *websocket.Conn
	send  chan []byte
	types map[string]bool
}

func (c *wsClient) wants(eventType string) bool {
	return c.types == nil || c.types[eventType]
}

// NewWSHub creates a hub. Call Run to start delivering.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		subscribers: make(map[*wsClient]struct{}),
		logger:      logger.With("component", "ws"),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		events:      make(chan events.Event, 256),
		done:        make(chan struct{}),
	}
}

// Run delivers events until Stop. On return every subscriber's send channel
// is closed.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.subscribers {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.subscribers[c] = struct{}{}
			n := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("subscriber added", "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[c]; ok {
				h.dropLocked(c)
			}
			n := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("subscriber removed", "total", n)

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

func (h *WSHub) deliver(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "type", ev.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subscribers {
		if !c.wants(ev.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.dropLocked(c)
			h.logger.Warn("subscriber evicted, send buffer full", "event", ev.Type)
		}
	}
}

// dropLocked removes c and closes its send channel. h.mu must be held.
func (h *WSHub) dropLocked(c *wsClient) {
	delete(h.subscribers, c)
	close(c.send)
}

// Stop shuts the hub down. Safe to call more than once.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues ev for delivery. It never blocks; when the queue is full
// the event is dropped.
func (h *WSHub) Broadcast(ev events.Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("event queue full, dropping", "type", ev.Type)
	}
}

// parseTypes reads the comma separated types query parameter. An empty value
// subscribes to everything.
func parseTypes(raw string) map[string]bool {
	var types map[string]bool
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if types == nil {
			types = make(map[string]bool)
		}
		types[t] = true
	}
	return types
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	client := &wsClient{
		conn:  conn,
		send:  make(chan []byte, wsSendBuffer),
		types: parseTypes(r.URL.Query().Get("types")),
	}

	// The snapshot is queued before registering so it is always first.
	snapshot, err := json.Marshal(events.Event{Type: snapshotEvent, Data: s.ctrl.Snapshot()})
	if err != nil {
		s.logger.Error("ws snapshot", "err", err)
	} else {
		client.send <- snapshot
	}

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

func (s *Server) wsWritePump(client *wsClient) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				client.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				s.logger.Debug("ws ping failed", "err", err)
				return
			}
		}
	}
}

func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		select {
		case s.wsHub.unregister <- client:
		case <-s.wsHub.done:
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Reading is needed for control frames; data messages are discarded.
	for {
		if _, _, err := client.conn.Read(ctx); err != nil {
			return
		}
	}
}
