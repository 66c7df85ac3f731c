// Package live broadcasts engine.TickFrame snapshots to connected WebSocket
// viewers, grounded on the teacher's pkg/liveserver hub/client design.
package live

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/KlmnCapital/simulation-engine/internal/engine"
	"github.com/KlmnCapital/simulation-engine/internal/logging"
)

// Message is one broadcast envelope sent to every connected client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const TypeTick = "tick"

// Client buffers outbound messages for one WebSocket connection.
type Client struct {
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

// NewClient returns a Client with a bounded send buffer.
func NewClient(id string) *Client {
	return &Client{id: id, send: make(chan Message, 256)}
}

// Send enqueues msg, returning false if the client's buffer is full (a slow
// reader) or the client is already closed.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// GetSendChan returns the channel writers drain to push to the socket.
func (c *Client) GetSendChan() <-chan Message { return c.send }

// Close marks the client closed and closes its send channel, idempotently.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans a broadcast channel out to every registered Client and implements
// engine.Observer so an Engine can push TickFrame snapshots directly.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     logging.Logger
	tickLimit  *rate.Limiter
}

// NewHub returns a Hub ready to Run. Tick frames are throttled to at most
// 20/s (burst 5) so a live monitor can never impose backpressure on the
// engine loop; excess frames are dropped, not queued.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		logger:     logger.WithField("component", "live_hub"),
		tickLimit:  rate.NewLimiter(20, 5),
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// cancelled, closing every connected client on exit.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("client registered", "client_id", c.id, "total_clients", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
			h.logger.Info("client unregistered", "client_id", c.id, "total_clients", len(h.clients))

		case msg := <-h.broadcast:
			h.mu.RLock()
			list := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				list = append(list, c)
			}
			h.mu.RUnlock()

			for _, c := range list {
				if !c.Send(msg) {
					select {
					case h.unregister <- c:
					default:
					}
				}
			}
		}
	}
}

// Register adds client to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes client from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast enqueues msg for delivery to every connected client, dropping it
// (with a log warning) if the broadcast channel is saturated.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnTick implements engine.Observer, broadcasting every frame as a "tick"
// message subject to tickLimit: frames arriving faster than the limiter
// allows are silently dropped rather than queued, so a slow or bursty
// engine loop is never throttled by the live monitor.
func (h *Hub) OnTick(frame engine.TickFrame) {
	if !h.tickLimit.Allow() {
		return
	}
	h.Broadcast(Message{Type: TypeTick, Data: frame})
}

var _ engine.Observer = (*Hub)(nil)
