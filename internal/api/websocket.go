package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/home-sentry/core/internal/infrastructure/logging"
)

// EventSignalStateRecorded is the event type broadcast for each recorded
// signal state.
const EventSignalStateRecorded = "signal.state_recorded"

// WebSocket timing and buffer constants.
const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// wsWriteWait is the time allowed to write a message to a client.
	wsWriteWait = 10 * time.Second

	// wsPongWait is the time allowed between pongs before the connection
	// is considered dead.
	wsPongWait = 60 * time.Second

	// wsPingInterval must be shorter than wsPongWait.
	wsPingInterval = 50 * time.Second

	// wsMaxMessageSize limits inbound client messages. Clients are
	// listeners; they have nothing large to say.
	wsMaxMessageSize = 512
)

// WSMessage is the envelope for events pushed to WebSocket clients.
type WSMessage struct {
	Type      string `json:"type"`
	EventType string `json:"eventType,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub fans signal-state events out to connected WebSocket clients.
//
// All client registration, removal, and broadcasting is serialised through
// the run loop, so the client map needs no locking.
type Hub struct {
	logger     *logging.Logger
	clients    map[*WSClient]struct{}
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan []byte
	stopped    chan struct{}
	count      atomic.Int64
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a WebSocket hub. Call Run to start it.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:     logger.With("component", "websocket"),
		clients:    make(map[*WSClient]struct{}),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan []byte, wsSendBufferSize),
		stopped:    make(chan struct{}),
	}
}

// Run processes hub events until the context is cancelled, then disconnects
// all clients. It blocks and should be started in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("websocket client connected", "clients", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("websocket client disconnected", "clients", len(h.clients))
		case data := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client: drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Broadcast queues an event for delivery to all connected clients.
// Safe to call from any goroutine; drops the event if the hub is stopped
// or saturated.
func (h *Hub) Broadcast(eventType string, payload any) {
	msg := WSMessage{
		Type:      "event",
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.stopped:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
	h.count.Store(0)
}

// remove hands a client back to the run loop for removal. It returns
// immediately if the hub has already stopped.
func (h *Hub) remove(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authentication happens in the middleware before the upgrade; browser
// clients pass the token as a query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.stopped:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound messages. Clients are push-only subscribers, so
// anything received is discarded; reading is still required to process
// control frames and detect disconnects.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump forwards queued events to the connection and keeps it alive
// with periodic pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline before write
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Hub closed the channel.
				//nolint:errcheck // Connection is going away regardless
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline before write
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
