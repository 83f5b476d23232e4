package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/types"
)

const (
	// clientSendBuffer bounds per-client backpressure. A client that falls
	// this far behind is dropped.
	clientSendBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// command is an inbound control frame from a WebSocket client. Start
// frames carry the goal and optional budgets; the rest reference an
// existing session.
type command struct {
	Action        string `json:"action"` // "start", "approve", "decline", or "cancel"
	SessionID     string `json:"sessionId,omitempty"`
	Goal          string `json:"goal,omitempty"`
	MaxPages      int    `json:"maxPages,omitempty"`
	MaxDurationMs int    `json:"maxDurationMs,omitempty"`
}

// CommandHandler receives control frames from connected clients.
type CommandHandler func(cmd command) error

// Hub fans browsing events out to every connected WebSocket client and
// routes inbound command frames to the orchestrator.
type Hub struct {
	logger    *logging.Logger
	upgrader  websocket.Upgrader
	onCommand CommandHandler

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn      *websocket.Conn
	send      chan *types.BrowseEvent
	closeOnce sync.Once
}

// NewHub creates a hub. onCommand may be nil for broadcast-only use.
func NewHub(logger *logging.Logger, onCommand CommandHandler) *Hub {
	return &Hub{
		logger:    logger,
		onCommand: onCommand,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]bool),
	}
}

// Broadcast queues an event to every connected client. Clients whose send
// buffer is full are dropped rather than blocking the orchestrator.
func (h *Hub) Broadcast(event *types.BrowseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.logger.Warnf("dropping slow websocket client")
			delete(h.clients, c)
			c.close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan *types.BrowseEvent, clientSendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.logger.Infof("websocket client connected from %s", r.RemoteAddr)

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// writePump pushes queued events and keepalive pings to one client.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes command frames from one client until it disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var cmd command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}
		if h.onCommand == nil {
			continue
		}
		if err := h.onCommand(cmd); err != nil {
			h.logger.Warnf("websocket command %q for session %s rejected: %v",
				cmd.Action, cmd.SessionID, err)
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}
