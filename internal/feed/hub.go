// Package feed streams registry events to websocket subscribers.
package feed

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the JSON frame sent for every applied registry mutation.
type Message struct {
	Op           string                       `json:"op"`
	Caller       registry.Principal           `json:"caller,omitempty"`
	LandID       registry.LandID              `json:"land_id"`
	At           time.Time                    `json:"at"`
	Transactions []registry.TransactionRecord `json:"transactions"`
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// Hub fans registry events out to connected clients. Observe never blocks:
// a client whose buffer is full is disconnected.
type Hub struct {
	// OnClients, when set, receives the subscriber count after every
	// connect and disconnect. It runs under the hub lock.
	OnClients func(n int)

	mu       sync.Mutex
	clients  map[*client]struct{}
	buffer   int
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub accepts browser connections only from origins, matched the way the
// HTTP API's CORS policy matches them. Requests without an Origin header and
// same-host requests are always accepted.
func NewHub(buffer int, origins []string) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		buffer:  buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
			continue
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Observe implements registry.Observer.
func (h *Hub) Observe(ev registry.Event) {
	txs := ev.Transactions
	if txs == nil {
		txs = []registry.TransactionRecord{}
	}
	payload, err := json.Marshal(Message{
		Op:           ev.Op,
		Caller:       ev.Caller,
		LandID:       ev.LandID,
		At:           ev.At,
		Transactions: txs,
	})
	if err != nil {
		log.Error().Err(err).Str("op", ev.Op).Msg("feed: encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			log.Warn().Str("remote", c.remote).Msg("feed: dropping slow client")
			h.dropLocked(c)
		}
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("feed: upgrade failed")
		return
	}
	c := &client{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.notifyLocked()
	h.mu.Unlock()

	log.Debug().Str("remote", c.remote).Msg("feed: client connected")
	go h.writeLoop(c)
	go h.readLoop(c)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.notifyLocked()
}

func (h *Hub) notifyLocked() {
	if h.OnClients != nil {
		h.OnClients(len(h.clients))
	}
}

// readLoop discards inbound frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.drop(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
