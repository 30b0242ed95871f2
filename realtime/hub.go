package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// ErrHubBusy is returned when the broadcast queue is full. The message is
// dropped.
var ErrHubBusy = errors.New("press: realtime hub is busy")

// SpaceFunc resolves the space a websocket request subscribes to.
type SpaceFunc func(r *http.Request) (string, error)

// QuerySpace reads the space from the space_id query parameter.
func QuerySpace(r *http.Request) (string, error) {
	space := r.URL.Query().Get("space_id")
	if space == "" {
		return "", errors.New("space_id is required")
	}
	return space, nil
}

var clientIDs atomic.Uint64

// Client is one websocket subscriber of a space.
type Client struct {
	id    uint64
	space string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans messages out to the websocket clients of each space. Run it with
// Serve; Publish never blocks.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	upgrader websocket.Upgrader
	space    SpaceFunc
	logger   *slog.Logger
}

var _ Broadcaster = (*Hub)(nil)

// NewHub returns a Hub. A nil space func uses QuerySpace.
func NewHub(space SpaceFunc, logger *slog.Logger) *Hub {
	if space == nil {
		space = QuerySpace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		space:  space,
		logger: logger,
	}
}

// Publish queues msg for the clients of msg.SpaceID.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	select {
	case h.broadcast <- msg:
		return nil
	default:
		return ErrHubBusy
	}
}

// Clients returns the number of clients subscribed to space.
func (h *Hub) Clients(space string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[space])
}

// Serve runs the hub until ctx is done, then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.done) })
			h.closeAll()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.space] == nil {
				h.clients[c.space] = make(map[*Client]struct{})
			}
			h.clients[c.space][c] = struct{}{}
			h.mu.Unlock()
			h.logger.DebugContext(ctx, "realtime client connected", "space_id", c.space, "client", c.id)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.fanOut(ctx, msg)
		}
	}
}

func (h *Hub) fanOut(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "realtime message encode failed", "space_id", msg.SpaceID, "error", err)
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clients[msg.SpaceID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.WarnContext(ctx, "realtime client too slow, disconnecting", "space_id", c.space, "client", c.id)
		h.remove(c)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.space]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.space)
	}
	close(c.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for space, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, space)
	}
}

// ServeHTTP upgrades the request and subscribes it to its space.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	space, err := h.space(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		id:    clientIDs.Add(1),
		space: space,
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump drains control frames until the connection closes.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("realtime client closed unexpectedly", "space_id", c.space, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
