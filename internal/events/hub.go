package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Hub fans record events out to every websocket an owner has open.
// Registration, removal and delivery are serialised through Run.
type Hub struct {
	clients    map[string]map[*client]struct{}
	broadcast  chan RecordEvent
	register   chan *client
	unregister chan *client
	count      chan chan int
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	owner string
	send  chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*client]struct{}),
		broadcast:  make(chan RecordEvent, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With("component", "events"),
	}
}

// AllowOrigins sets the browser origins that may open a socket; "*" admits
// any. Without it only same-host origins are accepted. Call before serving.
func (h *Hub) AllowOrigins(origins []string) {
	if len(origins) == 0 {
		return
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(origins, r.Header.Get("Origin"))
	}
}

// originAllowed admits requests without an Origin header; only non-browser
// clients omit it.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// Run processes hub traffic until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]struct{})
			return
		case c := <-h.register:
			if h.clients[c.owner] == nil {
				h.clients[c.owner] = make(map[*client]struct{})
			}
			h.clients[c.owner][c] = struct{}{}
			h.logger.Debug("Websocket client connected", "owner_id", c.owner)
		case c := <-h.unregister:
			h.remove(c)
		case e := <-h.broadcast:
			h.deliver(e)
		case reply := <-h.count:
			n := 0
			for _, set := range h.clients {
				n += len(set)
			}
			reply <- n
		}
	}
}

func (h *Hub) remove(c *client) {
	set := h.clients[c.owner]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.owner)
	}
	close(c.send)
}

func (h *Hub) deliver(e RecordEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to marshal record event", "error", err)
		return
	}
	for c := range h.clients[e.OwnerID] {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop it rather than block every other owner.
			h.remove(c)
		}
	}
}

// Publish queues e for delivery. It never blocks the caller; when the queue
// is full the event is dropped.
func (h *Hub) Publish(e RecordEvent) {
	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("Event queue full, dropping event", "type", e.Type, "record_id", e.ID)
	}
}

// Clients reports the number of open sockets, or zero once Run has returned.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and streams owner's events to it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, owner string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, owner: owner, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards client input and keeps the read deadline fresh so
// that pong frames are processed.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
