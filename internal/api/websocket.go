package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yolohome/gateway/internal/device"
	"github.com/yolohome/gateway/internal/infrastructure/config"
	"github.com/yolohome/gateway/internal/infrastructure/logging"
)

// statusPayload is the periodic message pushed to every WebSocket
// client: the full device state keyed by feed ID.
type statusPayload struct {
	LEDStatuses  map[string]string  `json:"led_statuses"`
	FanStatuses  map[string]int     `json:"fan_statuses"`
	SensorValues map[string]float64 `json:"sensor_values"`
	Timestamp    string             `json:"timestamp"`
}

// Hub manages WebSocket connections and pushes status snapshots.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	snapshot func() device.Snapshot

	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
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

// NewHub creates a WebSocket hub that pushes snapshots from the given
// source.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, snapshot func() device.Snapshot) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		snapshot: snapshot,
		clients:  make(map[*WSClient]struct{}),
	}
}

// Run pushes a status snapshot to every client at the configured
// interval. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	interval := time.Duration(h.cfg.PushInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			h.broadcast(h.statusMessage())
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// statusMessage builds and marshals the current status payload.
func (h *Hub) statusMessage() []byte {
	snap := h.snapshot()

	payload := statusPayload{
		LEDStatuses:  make(map[string]string, len(snap.LEDs)),
		FanStatuses:  make(map[string]int, len(snap.Fans)),
		SensorValues: make(map[string]float64, len(snap.Sensors)),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	for _, l := range snap.LEDs {
		payload.LEDStatuses[l.ID] = l.Status
	}
	for _, f := range snap.Fans {
		payload.FanStatuses[f.ID] = f.Value
	}
	for _, s := range snap.Sensors {
		payload.SensorValues[s.ID] = s.Value
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal status payload", "error", err)
		return nil
	}
	return data
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during
// shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// broadcast sends data to every connected client.
// Lock ordering: the client list is snapshotted under the hub lock,
// which is released before any send.
func (h *Hub) broadcast(data []byte) {
	if data == nil {
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels so
// writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection and starts the client's
// pumps. The first snapshot is queued immediately so clients render
// without waiting a full push interval.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, s.wsCfg.SendBuffer),
	}

	s.hub.Register(client)
	client.trySend(s.hub.statusMessage())

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads from the connection until it closes. Clients do not
// send application messages; reads exist to notice disconnects and
// answer protocol pings.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// writePump writes queued messages and protocol pings to the
// connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data for the client, dropping the oldest queued
// message when the buffer is full. A slow client sees stale snapshots
// replaced, never a growing backlog. Absorbs the send-on-closed-channel
// panic when the client disconnects mid-broadcast.
func (c *WSClient) trySend(data []byte) {
	if data == nil {
		return
	}
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	for {
		select {
		case c.send <- data:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}
