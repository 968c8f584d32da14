package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/seedling-live/internal/config"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

// Client is one mounted display connected over WebSocket.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu       sync.Mutex
	closed   bool
	releases []func()
}

// NewClient wraps conn. The send buffer size comes from the hub config.
func NewClient(id string, h *Hub, conn *websocket.Conn) *Client {
	size := h.config.SendBuffer
	if size <= 0 {
		size = 256
	}
	return &Client{ID: id, Hub: h, Conn: conn, Send: make(chan []byte, size)}
}

// OnRelease registers f to run once when the client goes away. It is how a
// client ties its event subscriptions to the connection lifetime.
func (c *Client) OnRelease(f func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		f()
		return
	}
	c.releases = append(c.releases, f)
	c.mu.Unlock()
}

// SendMessage queues message for the client. Messages to a full or closed
// client are dropped.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.Send <- data:
	default:
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldClientID, c.ID).Msg("client send buffer full, dropping message")
	}
	return nil
}

// close releases subscriptions and closes Send exactly once.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	releases := c.releases
	c.releases = nil
	close(c.Send)
	c.mu.Unlock()

	for _, f := range releases {
		f()
	}
}

// Hub tracks the connected displays.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// NewHub creates a new Hub. Zero timings fall back to the usual defaults.
func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run is the hub's main loop. When ctx ends every client is closed.
func (h *Hub) Run(ctx context.Context) {
	l := pkglog.L()
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Info().Str(pkglog.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
			}
			h.mu.Unlock()
			client.close()
			l.Info().Str(pkglog.FieldClientID, client.ID).Msg("client unregistered")

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			for _, client := range clients {
				client.close()
			}
			l.Info().Int("clients", len(clients)).Msg("hub stopped")
			return
		}
	}
}

// Register adds a client to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		client.close()
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump pumps messages from the WebSocket connection to handler.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	if c.Hub.config.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	}
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Error().Err(err).Str(pkglog.FieldClientID, c.ID).Msg("websocket error")
			}
			break
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))

		handler(c, message)
	}
}

// WritePump pumps queued messages to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
