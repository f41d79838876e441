// Package websocket is the live-update transport: a hub that fans sprite
// updates and reload requests out to connected browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/iconsprite/internal/livereload"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/validation"
)

// Message types understood by the client script.
const (
	MessageTypeConnected  = "connected"
	MessageTypeCustom     = "custom"
	MessageTypeFullReload = "full-reload"
)

const (
	sendBuffer   = 16
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	closeGrace   = time.Second
)

// ErrShutdown is returned when broadcasting on a stopped hub.
var ErrShutdown = errors.New("websocket hub is shut down")

// Message is the JSON envelope sent to clients.
type Message struct {
	Type      string      `json:"type"`
	Event     string      `json:"event,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// OriginValidator decides which browser origins may connect.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowedHosts accepts origins whose host[:port] is in the list.
type AllowedHosts []string

// IsAllowedOrigin implements OriginValidator.
func (a AllowedHosts) IsAllowedOrigin(origin string) bool {
	return validation.ValidateOrigin(origin, a) == nil
}

// Client is one connected browser.
type Client struct {
	conn   *websocket.Conn
	remote string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue reports false when the client's buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks clients and broadcasts messages to all of them. It implements
// livereload.Broadcaster.
type Hub struct {
	originValidator OriginValidator
	logger          logging.Logger

	clientsMutex sync.RWMutex
	clients      map[*Client]struct{}

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewHub creates a hub. originValidator is required.
func NewHub(originValidator OriginValidator, logger logging.Logger) *Hub {
	if originValidator == nil {
		panic("websocket: originValidator cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		originValidator: originValidator,
		logger:          logger.WithComponent("websocket"),
		clients:         make(map[*Client]struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects or the hub shuts down.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if !h.originValidator.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "WebSocket connection rejected: invalid origin",
			"origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// the origin was checked above
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}
	h.register(client)

	if data, err := encode(Message{Type: MessageTypeConnected}); err == nil {
		client.enqueue(data)
	}

	go h.writeToClient(client)
	h.readFromClient(client)
	h.unregister(client)
}

func (h *Hub) register(client *Client) {
	h.clientsMutex.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.clientsMutex.Unlock()

	h.logger.Info(h.ctx, "WebSocket client connected", "remote", client.remote, "clients", total)
}

func (h *Hub) unregister(client *Client) {
	if !h.detach(client) {
		return
	}
	_ = client.conn.Close(websocket.StatusNormalClosure, "")
}

// detach removes client from the hub and stops its writer. It reports
// false when the client was already gone.
func (h *Hub) detach(client *Client) bool {
	h.clientsMutex.Lock()
	_, exists := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.clientsMutex.Unlock()

	if !exists {
		return false
	}
	client.closeSend()
	h.logger.Debug(h.ctx, "WebSocket client disconnected", "remote", client.remote, "clients", total)
	return true
}

// readFromClient drains client frames; the client only ever sends close
// frames, so any read error ends the connection.
func (h *Hub) readFromClient(client *Client) {
	for {
		if _, _, err := client.conn.Read(h.ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway &&
				h.ctx.Err() == nil {
				h.logger.Debug(h.ctx, "WebSocket read ended", "remote", client.remote, "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(h.ctx, "WebSocket write failed", "remote", client.remote, "error", err.Error())
				_ = client.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				_ = client.conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast sends msg to every connected client. Clients whose buffers are
// full are disconnected.
func (h *Hub) Broadcast(msg Message) error {
	if h.isShutdown.Load() {
		return ErrShutdown
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}

	h.clientsMutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(data) {
			h.logger.Warn(h.ctx, nil, "WebSocket client too slow, disconnecting", "remote", client.remote)
			go h.unregister(client)
		}
	}
	return nil
}

// SendUpdate pushes a sprite update as a named custom event.
func (h *Hub) SendUpdate(_ context.Context, update livereload.Update) error {
	return h.Broadcast(Message{Type: MessageTypeCustom, Event: livereload.UpdateEvent, Data: update})
}

// RequestReload asks every client to reload the page.
func (h *Hub) RequestReload(_ context.Context) error {
	return h.Broadcast(Message{Type: MessageTypeFullReload})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// IsShutdown reports whether Shutdown has been called.
func (h *Hub) IsShutdown() bool {
	return h.isShutdown.Load()
}

// Shutdown closes every client connection. Broadcasts fail afterwards.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.isShutdown.Store(true)

		h.clientsMutex.Lock()
		clients := make([]*Client, 0, len(h.clients))
		for client := range h.clients {
			clients = append(clients, client)
		}
		h.clientsMutex.Unlock()

		// close handshakes run concurrently; peers that do not answer
		// within closeGrace are dropped
		var wg sync.WaitGroup
		for _, client := range clients {
			h.detach(client)
			wg.Add(1)
			go func(client *Client) {
				defer wg.Done()
				_ = client.conn.Close(websocket.StatusGoingAway, "Server shutdown")
			}(client)
		}
		closed := make(chan struct{})
		go func() {
			wg.Wait()
			close(closed)
		}()

		grace := time.NewTimer(closeGrace)
		defer grace.Stop()
		select {
		case <-closed:
		case <-grace.C:
		case <-ctx.Done():
		}

		h.cancel()
		for _, client := range clients {
			_ = client.conn.CloseNow()
		}
		h.logger.Debug(ctx, "WebSocket hub shut down", "clients", len(clients))
	})
	return nil
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return json.Marshal(msg)
}
